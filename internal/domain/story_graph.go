package domain

import "fmt"

// EndSceneIndex returns the designated ending scene of the story.
func (s Story) EndSceneIndex() int {
	if s.EndScene != nil {
		return *s.EndScene
	}
	return len(s.Scenes) - 1
}

// ValidateGraph checks that every option points inside the story, that only the
// ending scene may be a dead end, and that the ending scene is reachable from
// scene 0. Cycles are allowed as long as the ending stays reachable.
func ValidateGraph(story Story) error {
	n := len(story.Scenes)
	if n == 0 {
		return InvalidGraphf("story %q has no scenes", story.ID)
	}
	end := story.EndSceneIndex()
	if end < 0 || end >= n {
		return InvalidGraphf("story %q: ending scene %d out of bounds [0,%d)", story.ID, end, n)
	}

	for i, scene := range story.Scenes {
		if len(scene.Options) == 0 && i != end {
			return InvalidGraphf("story %q: scene %d has no options and is not the ending scene", story.ID, i)
		}
		for j, opt := range scene.Options {
			if opt.To < 0 || opt.To >= n {
				return InvalidGraphf("story %q: scene %d option %d targets %d, want [0,%d)", story.ID, i, j, opt.To, n)
			}
		}
	}

	// Breadth-first walk; each scene is expanded at most once so the walk is
	// bounded by len(scenes) even when the narrative loops.
	visited := make([]bool, n)
	queue := []int{0}
	visited[0] = true
	for hops := 0; len(queue) > 0 && hops < n; hops++ {
		cur := queue[0]
		queue = queue[1:]
		if cur == end {
			return nil
		}
		for _, opt := range story.Scenes[cur].Options {
			if !visited[opt.To] {
				visited[opt.To] = true
				queue = append(queue, opt.To)
			}
		}
	}
	return InvalidGraphf("story %q: ending scene %d is unreachable from scene 0", story.ID, end)
}

// NextScene follows optionIndex out of sceneIndex and returns the target scene
// together with its index.
func NextScene(story Story, sceneIndex, optionIndex int) (Scene, int, error) {
	if sceneIndex < 0 || sceneIndex >= len(story.Scenes) {
		return Scene{}, 0, fmt.Errorf("scene %d of story %q: %w", sceneIndex, story.ID, ErrOutOfRange)
	}
	options := story.Scenes[sceneIndex].Options
	if optionIndex < 0 || optionIndex >= len(options) {
		return Scene{}, 0, fmt.Errorf("option %d of scene %d: %w", optionIndex, sceneIndex, ErrOutOfRange)
	}
	to := options[optionIndex].To
	if to < 0 || to >= len(story.Scenes) {
		return Scene{}, 0, fmt.Errorf("option %d of scene %d targets %d: %w", optionIndex, sceneIndex, to, ErrOutOfRange)
	}
	return story.Scenes[to], to, nil
}
