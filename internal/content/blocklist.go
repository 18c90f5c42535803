package content

// defaultBlocklist covers topics the AI path should never be steered toward.
// Deliberately coarse: false positives just fall back to the default topic.
var defaultBlocklist = []string{
	"suicide",
	"self harm",
	"self-harm",
	"terror",
	"bomb making",
	"nazi",
	"genocide",
	"porn",
	"sexual",
	"nsfw",
	"gore",
	"beheading",
	"drug synthesis",
	"meth",
	"weapon",
	"gun build",
	"hate speech",
	"slur",
}
