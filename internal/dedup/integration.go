package dedup

import (
	"fmt"
	"strings"

	"github.com/hurttlocker/taskmine/internal/task"
)

// ValidateIntegration scans a deduplicated task list for consistency
// problems. Every finding is a warning; no task is dropped or changed.
func ValidateIntegration(tasks []task.Task, domains []string, opts Options) []string {
	opts = opts.withDefaults()
	warnings := []string{}

	declared := make(map[string]bool, len(domains))
	for _, d := range domains {
		declared[strings.TrimSpace(d)] = true
	}

	counts := map[string]int{}
	var domainOrder []string
	ids := map[string]int{}
	for _, t := range tasks {
		if _, ok := counts[t.Domain]; !ok {
			domainOrder = append(domainOrder, t.Domain)
		}
		counts[t.Domain]++

		if len(declared) > 0 && !declared[t.Domain] {
			msg := fmt.Sprintf("task %q has domain %q which is not a declared workshop domain", t.Title, t.Domain)
			if hint := closestDomain(t.Domain, domains); hint != "" {
				msg += fmt.Sprintf(" (closest: %q)", hint)
			}
			warnings = append(warnings, msg)
		}
		if t.ID != "" {
			ids[t.ID]++
		}
	}

	seenID := map[string]bool{}
	for _, t := range tasks {
		if t.ID == "" || ids[t.ID] < 2 || seenID[t.ID] {
			continue
		}
		seenID[t.ID] = true
		warnings = append(warnings, fmt.Sprintf("task id %q is used by %d tasks", t.ID, ids[t.ID]))
	}

	for _, d := range domains {
		d = strings.TrimSpace(d)
		if d != "" && counts[d] == 0 {
			warnings = append(warnings, fmt.Sprintf("declared domain %q has no tasks", d))
		}
	}

	for _, d := range domainOrder {
		if counts[d] > opts.MaxTasksPerDomain {
			warnings = append(warnings, fmt.Sprintf("domain %q has %d tasks and may be over-fragmented", d, counts[d]))
		}
	}

	pairs := SuspiciousPairs(tasks, opts)
	for i, p := range pairs {
		if i == opts.MaxSuspiciousPairs {
			break
		}
		warnings = append(warnings, fmt.Sprintf("possible duplicate: %q and %q (title similarity %.0f%%)", p.First, p.Second, p.Similarity*100))
	}

	return warnings
}

// Pair is two same-domain tasks whose titles are close but below the merge
// threshold.
type Pair struct {
	First      string  `json:"first"`
	Second     string  `json:"second"`
	Similarity float64 `json:"similarity"`
}

// SuspiciousPairs lists same-domain title pairs with similarity in
// (SuspiciousFloor, TitleThreshold], in input order.
func SuspiciousPairs(tasks []task.Task, opts Options) []Pair {
	opts = opts.withDefaults()
	var out []Pair
	for i := 0; i < len(tasks); i++ {
		for j := i + 1; j < len(tasks); j++ {
			if tasks[i].Domain != tasks[j].Domain {
				continue
			}
			sim := TitleSimilarity(tasks[i].Title, tasks[j].Title)
			if sim > opts.SuspiciousFloor && sim <= opts.TitleThreshold {
				out = append(out, Pair{First: tasks[i].Title, Second: tasks[j].Title, Similarity: sim})
			}
		}
	}
	return out
}

// closestDomain returns the declared domain that contains or is contained by
// domain, or failing that the most similar one above the suspicious floor.
func closestDomain(domain string, declared []string) string {
	ld := strings.ToLower(strings.TrimSpace(domain))
	if ld == "" {
		return ""
	}
	for _, d := range declared {
		l := strings.ToLower(strings.TrimSpace(d))
		if l != "" && (strings.Contains(l, ld) || strings.Contains(ld, l)) {
			return d
		}
	}
	best, bestSim := "", 0.5
	for _, d := range declared {
		if sim := TitleSimilarity(domain, d); sim > bestSim {
			best, bestSim = d, sim
		}
	}
	return best
}
