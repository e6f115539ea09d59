package router

// DefaultPatterns is a representative, hand-authored starter set
// spanning every tier. Calibration (see calibration.go) appends to
// this set over time from observed client/LLM mismatches.
func DefaultPatterns() []Pattern {
	return []Pattern{
		{
			Regex:      `\b(prove|theorem|lemma|formal proof|derivation|axiom)\b`,
			Tier:       TierReasoning,
			Confidence: 0.95,
			Examples:   []string{"Prove that...", "Formal proof of"},
			Source:     "manual",
		},
		{
			Regex:      `\b(step by step|walk me through|explain your reasoning|logical consequence)\b`,
			Tier:       TierReasoning,
			Confidence: 0.88,
			Examples:   []string{"Walk me through this", "Step by step solution"},
			Source:     "manual",
		},
		{
			Regex:      `\b(refactor|architecture|distributed system|microservice|design pattern|security review|scalability)\b`,
			Tier:       TierComplex,
			Confidence: 0.90,
			Examples:   []string{"Refactor this codebase", "Design a distributed system"},
			Source:     "manual",
		},
		{
			Regex:      `\b(race condition|memory leak|deadlock|bottleneck|troubleshoot|concurrency)\b`,
			Tier:       TierComplex,
			Confidence: 0.85,
			Examples:   []string{"Debug this issue", "Find the race condition"},
			Source:     "manual",
		},
		{
			Regex:      "\\b(write code|implement|code review|unit test|api endpoint|algorithm|fix bug)\\b",
			Tier:       TierCoding,
			Confidence: 0.92,
			Examples:   []string{"Write a function", "Fix this bug", "Implement API"},
			Source:     "manual",
		},
		{
			Regex:      `\bgit (status|log|commit|push|pull|merge|rebase|checkout|branch)\b`,
			Tier:       TierCoding,
			Confidence: 0.88,
			Examples:   []string{"git status", "git push", "create a branch"},
			Source:     "manual",
		},
		{
			Regex:      `\b(docker (build|run|compose)|kubernetes|k8s|container image)\b`,
			Tier:       TierCoding,
			Confidence: 0.90,
			Examples:   []string{"docker build", "kubernetes deployment"},
			Source:     "manual",
		},
		{
			Regex:      "```[a-zA-Z]*\\n|^(function|class|def|async|import|const|let|var)\\b",
			Tier:       TierMedium,
			Confidence: 0.85,
			Examples:   []string{"Code block present"},
			Source:     "manual",
		},
		{
			Regex:      `\b(documentation|readme|summarize|paraphrase|rewrite|compare|pros and cons)\b`,
			Tier:       TierMedium,
			Confidence: 0.78,
			Examples:   []string{"Write documentation", "Summarize this"},
			Source:     "manual",
		},
		{
			Regex:      `\b(creative writing|story|poem|brainstorm|generate ideas|recommend|tutorial)\b`,
			Tier:       TierMedium,
			Confidence: 0.80,
			Examples:   []string{"Write a story", "Brainstorm ideas"},
			Source:     "manual",
		},
		{
			Regex:      `\b(configure|setup|install|deploy|getting started|environment|dependencies)\b`,
			Tier:       TierMedium,
			Confidence: 0.78,
			Examples:   []string{"Setup guide", "How to install"},
			Source:     "manual",
		},
		{
			Regex:      `\b(good morning|good afternoon|good evening|good night|see you tomorrow)\b`,
			Tier:       TierSimple,
			Confidence: 0.95,
			Examples:   []string{"Good morning!", "Good night!"},
			Source:     "manual",
		},
		{
			Regex:      `\b(thank you|thanks|appreciate it|you're the best)\b`,
			Tier:       TierSimple,
			Confidence: 0.90,
			Examples:   []string{"Thank you!", "Thanks so much!"},
			Source:     "manual",
		},
		{
			Regex:      `\b(how are you|what's new|how's it going|sup|yo)\b`,
			Tier:       TierSimple,
			Confidence: 0.90,
			Examples:   []string{"How are you?", "What's new?"},
			Source:     "manual",
		},
		{
			Regex:      `\b(what is|how to|define|translate|meaning of|synonym)\b`,
			Tier:       TierSimple,
			Confidence: 0.85,
			Examples:   []string{"What is photosynthesis?", "Translate hello"},
			Source:     "manual",
		},
	}
}
