package simulator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateStory(t *testing.T) {
	story := mustStory(t, `
chapter start {
	label a
	label a
	jump(chapter: missing)
	enter(chapter: side, label: nope)
	teleport()
	vn_dialog.say(what: "ok")
}
chapter side {
	label here
	jump(label: here)
}`)

	issues := ValidateStory(story, NewRegistry(nil))
	messages := make([]string, len(issues))
	for i, issue := range issues {
		messages[i] = issue.String()
	}

	assert.Len(t, issues, 4, messages)
	assert.Equal(t, "warning", issues[0].Severity)
	assert.Equal(t, 1, issues[0].Position)
	assert.Equal(t, "error", issues[1].Severity)
	assert.Contains(t, issues[1].Message, "missing")
	assert.Equal(t, "warning", issues[2].Severity)
	assert.Contains(t, issues[3].Message, "teleport")
}

func TestSuggestPaths(t *testing.T) {
	story := mustStory(t, branchingStory)

	paths := SuggestPaths(story, "start", 5)
	assert.Equal(t, [][]string{
		{"start", "home"},
		{"start", "shop", "epilogue"},
	}, sortPaths(paths))

	assert.Equal(t, []string{"shop", "home"}, Links(story, "start"))
	assert.Nil(t, Links(story, "missing"))
}

func sortPaths(paths [][]string) [][]string {
	for i := 1; i < len(paths); i++ {
		for j := i; j > 0 && len(paths[j]) < len(paths[j-1]); j-- {
			paths[j], paths[j-1] = paths[j-1], paths[j]
		}
	}
	return paths
}
