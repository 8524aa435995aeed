package simulator

import (
	"fmt"
	"sort"

	"vns-engine/library"
	"vns-engine/parser"
	"vns-engine/vm"
)

// Issue è un problema trovato dall'analisi statica
type Issue struct {
	Severity string `json:"severity"` // error, warning
	Chapter  string `json:"chapter"`
	Position int    `json:"position"`
	Message  string `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("[%s] %s#%d: %s", i.Severity, i.Chapter, i.Position, i.Message)
}

// ValidateStory controlla la storia senza eseguirla:
// funzioni sconosciute, capitoli e label di destinazione mancanti, label duplicate.
func ValidateStory(story *parser.Story, registry vm.FunctionRegistry) []Issue {
	issues := []Issue{}

	for _, name := range sortedChapters(story) {
		chapter := story.Chapters[name]
		seen := make(map[string]bool)

		for position, item := range chapter.Items {
			issue := func(severity, format string, args ...any) {
				issues = append(issues, Issue{
					Severity: severity,
					Chapter:  name,
					Position: position,
					Message:  fmt.Sprintf(format, args...),
				})
			}

			if item.Kind == parser.ItemLabel {
				if seen[item.Label] {
					issue("warning", "label '%s' duplicata, vale la prima", item.Label)
				}
				seen[item.Label] = true
				continue
			}

			action := item.Action
			fn, ok := registry.Find(action.Name, action.Namespace)
			if !ok {
				issue("error", "funzione '%s' non registrata", action.Path())
				continue
			}
			if !isFlowFunction(fn) {
				continue
			}

			target := name
			if chapterName, ok := action.Params["chapter"].AsText(); ok {
				target = chapterName
			}
			targetChapter, exists := story.Chapters[target]
			if !exists {
				issue("error", "capitolo '%s' non trovato", target)
				continue
			}
			if label, ok := action.Params["label"].AsText(); ok {
				if _, found := targetChapter.FindLabel(label); !found {
					issue("warning", "label '%s' non trovata in '%s', si parte dall'inizio", label, target)
				}
			}
		}
	}
	return issues
}

func isFlowFunction(fn vm.Callable) bool {
	return fn.Namespace() == library.Namespace && (fn.Name() == "jump" || fn.Name() == "enter")
}

func sortedChapters(story *parser.Story) []string {
	names := make([]string, 0, len(story.Chapters))
	for name := range story.Chapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Links restituisce i capitoli raggiungibili da un capitolo con jump o enter
func Links(story *parser.Story, chapter string) []string {
	source, ok := story.Chapters[chapter]
	if !ok {
		return nil
	}
	links := []string{}
	seen := make(map[string]bool)
	for _, item := range source.Items {
		if item.Kind != parser.ItemAction {
			continue
		}
		if item.Action.Name != "jump" && item.Action.Name != "enter" {
			continue
		}
		target, ok := item.Action.Params["chapter"].AsText()
		if !ok || target == chapter || seen[target] {
			continue
		}
		seen[target] = true
		links = append(links, target)
	}
	return links
}

// SuggestPaths suggerisce percorsi tra capitoli dato un punto di partenza
func SuggestPaths(story *parser.Story, start string, maxDepth int) [][]string {
	paths := [][]string{}

	// BFS per trovare i percorsi possibili
	queue := [][]string{{start}}

	for len(queue) > 0 && len(paths) < 10 { // Limite a 10 percorsi
		currentPath := queue[0]
		queue = queue[1:]

		if len(currentPath) >= maxDepth {
			paths = append(paths, currentPath)
			continue
		}

		last := currentPath[len(currentPath)-1]
		if _, exists := story.Chapters[last]; !exists {
			continue
		}

		links := Links(story, last)
		if len(links) == 0 {
			paths = append(paths, currentPath)
			continue
		}
		for _, link := range links {
			newPath := make([]string, len(currentPath), len(currentPath)+1)
			copy(newPath, currentPath)
			queue = append(queue, append(newPath, link))
		}
	}
	return paths
}
