// Package grading computes attempt scores. It is pure: no I/O, no clock,
// deterministic given its inputs.
package grading

// Answer pairs a student's selected option with the correct option from
// the question version pinned to the attempt.
type Answer struct {
	SelectedIndex int
	CorrectIndex  int
}

// Result is the outcome of grading one attempt.
type Result struct {
	Correct    int
	Total      int
	Percentage int
}

// Grade tallies correct answers. Total counts every answer slot,
// including unanswered ones (selected index -1), so an untouched question
// still lowers the percentage. Percentage is floor(correct*100/total);
// an attempt with zero questions grades to 0 rather than dividing by zero.
func Grade(answers []Answer) Result {
	total := len(answers)
	correct := 0
	for _, a := range answers {
		if a.SelectedIndex == a.CorrectIndex {
			correct++
		}
	}

	percent := 0
	if total > 0 {
		percent = correct * 100 / total
	}

	return Result{Correct: correct, Total: total, Percentage: percent}
}
