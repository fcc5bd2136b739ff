package domain

// Score evaluates a submitted answer against a question and returns the
// awarded marks. It never errors, has no side effects, and is safe to
// call concurrently.
//
// Rules:
//   - An empty selection scores 0 for every question type.
//   - Single-choice: the single correct option must be the only selection;
//     a match awards Marks, anything else costs NegativeMarks.
//   - Multi-choice: selecting any wrong option voids the question (0);
//     otherwise credit is proportional to the fraction of correct options
//     selected. A degenerate empty correct set scores 0.
func Score(q *Question, selected []int64) float64 {
	if len(selected) == 0 {
		return 0
	}

	switch q.Type {
	case SingleChoice:
		// Exactly one correct identifier exists; a multi-id selection is
		// treated as a non-match rather than an error.
		if len(q.CorrectOptions) != 1 {
			return 0
		}
		if len(selected) == 1 && selected[0] == q.CorrectOptions[0] {
			return q.Marks
		}
		return -q.NegativeMarks

	case MultiChoice:
		if len(q.CorrectOptions) == 0 {
			return 0
		}
		correct := make(map[int64]struct{}, len(q.CorrectOptions))
		for _, id := range q.CorrectOptions {
			correct[id] = struct{}{}
		}
		hits := 0
		seen := make(map[int64]struct{}, len(selected))
		for _, id := range selected {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			if _, ok := correct[id]; !ok {
				return 0
			}
			hits++
		}
		return float64(hits) / float64(len(q.CorrectOptions)) * q.Marks
	}

	return 0
}
