package service

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/layer-3/presence/core"
)

// Prompt template families. Every generated phrase embeds random words and
// numbers so no two sessions see the same phrase verbatim.
const (
	promptNATO      = "nato_phonetic"
	promptWords     = "common_words"
	promptSentence  = "sentence"
	promptColorCode = "color_code"
)

var promptTemplates = []string{promptNATO, promptWords, promptSentence, promptColorCode}

var natoWords = []string{
	"Alpha", "Bravo", "Charlie", "Delta", "Echo", "Foxtrot",
	"Golf", "Hotel", "India", "Juliet", "Kilo", "Lima",
	"Mike", "November", "Oscar", "Papa", "Quebec", "Romeo",
	"Sierra", "Tango", "Uniform", "Victor", "Whiskey", "X-ray", "Yankee", "Zulu",
}

var (
	promptAdjectives = []string{"bright", "quick", "smart", "happy", "calm", "clear", "fresh", "strong"}
	promptNouns      = []string{"ocean", "mountain", "forest", "river", "garden", "window", "bridge", "castle"}
	promptVerbs      = []string{"flows", "shines", "grows", "stands", "moves", "glows", "dances", "sings"}
)

var promptSentences = []string{
	"Security verification in progress",
	"Digital identity confirmation required",
	"Biometric authentication system active",
	"Voice pattern recognition enabled",
	"Cryptographic signature generation complete",
	"Multi-factor authentication process running",
}

var (
	promptColors  = []string{"red", "blue", "green", "yellow", "purple", "orange", "silver", "golden"}
	promptObjects = []string{"key", "box", "door", "card", "book", "phone", "watch", "coin"}
)

// GenerateVoicePrompt composes a fresh phrase from one of the template
// families using the provided randomness source.
func GenerateVoicePrompt(rng *rand.Rand) core.VoicePrompt {
	template := promptTemplates[rng.Intn(len(promptTemplates))]

	var phrase string
	switch template {
	case promptNATO:
		picked := rng.Perm(len(natoWords))[:3]
		words := make([]string, 3)
		for i, idx := range picked {
			words[i] = natoWords[idx]
		}
		phrase = fmt.Sprintf("%s %d", strings.Join(words, " "), 10+rng.Intn(90))

	case promptWords:
		phrase = fmt.Sprintf("The %s %s %s %d",
			promptAdjectives[rng.Intn(len(promptAdjectives))],
			promptNouns[rng.Intn(len(promptNouns))],
			promptVerbs[rng.Intn(len(promptVerbs))],
			100+rng.Intn(900))

	case promptSentence:
		phrase = fmt.Sprintf("%s %d",
			promptSentences[rng.Intn(len(promptSentences))],
			100+rng.Intn(900))

	default: // promptColorCode
		color := promptColors[rng.Intn(len(promptColors))]
		phrase = fmt.Sprintf("%s %s number %d code %d",
			strings.ToUpper(color[:1])+color[1:],
			promptObjects[rng.Intn(len(promptObjects))],
			10+rng.Intn(90),
			100+rng.Intn(900))
	}

	return core.VoicePrompt{Phrase: phrase, TemplateID: template}
}
