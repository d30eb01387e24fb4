// File: internal/browser/dom/roles.go
package dom

// Role identifies a logical UI function independent of the page's current
// markup. Every role maps to an ordered chain of locator patterns; the order
// encodes priority, with the proven structural/semantic match first.
type Role string

const (
	RoleVoiceButton       Role = "voice_button"
	RoleExitVoiceButton   Role = "exit_voice_button"
	RoleTextInput         Role = "text_input"
	RoleResponseContainer Role = "response_container"
	RoleNewChatButton     Role = "new_chat_button"
	RoleErrorBanner       Role = "error_banner"
)

// AllRoles lists every known role in a stable order, for discovery sweeps.
var AllRoles = []Role{
	RoleVoiceButton,
	RoleExitVoiceButton,
	RoleTextInput,
	RoleResponseContainer,
	RoleNewChatButton,
	RoleErrorBanner,
}

// Pattern is a single locator heuristic: a CSS selector that may or may not
// match the live page for a given role.
type Pattern struct {
	Selector string
	Note     string
}

// The chains are intentionally redundant and overlapping. The target page's
// markup is unversioned and changes without notice, so each role carries
// attribute-substring, ARIA, data-testid, class-substring and structural
// fallbacks. The first entry of each chain is the selector proven against the
// live site; the rest come from UI discovery sweeps.
var patternTable = map[Role][]Pattern{
	RoleVoiceButton: {
		{Selector: "[aria-label*='voice']", Note: "aria label substring (proven)"},
		{Selector: "[aria-label*='Voice']", Note: "aria label, capitalized"},
		{Selector: "button[title*='voice']", Note: "title attribute"},
		{Selector: "button[title*='Voice']", Note: "title attribute, capitalized"},
		{Selector: "[data-testid*='voice']", Note: "test id"},
		{Selector: "[class*='voice']", Note: "class substring"},
	},
	RoleExitVoiceButton: {
		{Selector: "[aria-label='Exit voice mode']", Note: "exact aria label (proven)"},
		{Selector: "[aria-label*='Exit voice']", Note: "aria label substring"},
		{Selector: "[aria-label*='exit voice']", Note: "aria label, lowercase"},
	},
	RoleTextInput: {
		{Selector: "[contenteditable='true']", Note: "contenteditable composer (proven)"},
		{Selector: "textarea[placeholder*='Ask']", Note: "prompt placeholder"},
		{Selector: "textarea[placeholder*='Message']", Note: "message placeholder"},
		{Selector: "[role='textbox']", Note: "ARIA textbox"},
		{Selector: "textarea", Note: "bare textarea"},
		{Selector: "input[type='text']", Note: "plain text input"},
	},
	RoleResponseContainer: {
		{Selector: "[class*='message']", Note: "message class substring (proven)"},
		{Selector: "[class*='response']", Note: "response class substring"},
		{Selector: "[data-testid*='message']", Note: "message test id"},
		{Selector: "[data-testid*='response']", Note: "response test id"},
		{Selector: "[role='log']", Note: "ARIA log region"},
	},
	RoleNewChatButton: {
		{Selector: "a[href='/']", Note: "root link (proven)"},
		{Selector: "a[href='https://grok.com']", Note: "absolute root link"},
		{Selector: "[aria-label*='New']", Note: "aria label substring"},
		{Selector: "[aria-label*='new']", Note: "aria label, lowercase"},
		{Selector: "[class*='new']", Note: "class substring"},
	},
	RoleErrorBanner: {
		{Selector: "[role='alert']", Note: "ARIA alert (proven)"},
		{Selector: "[class*='error']", Note: "error class substring"},
		{Selector: "[class*='Error']", Note: "error class, capitalized"},
		{Selector: "[aria-label*='error']", Note: "aria label substring"},
	},
}

// Patterns returns the ordered locator chain for a role. The returned slice is
// a copy; callers may not mutate the table.
func Patterns(role Role) []Pattern {
	chain := patternTable[role]
	out := make([]Pattern, len(chain))
	copy(out, chain)
	return out
}
