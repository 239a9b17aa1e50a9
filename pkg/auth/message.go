package auth

// LoginMessagePrefix is the first line of every login message.
const LoginMessagePrefix = "Sign in to Grainlify"

// Rendering is one textual form of the login message for a nonce.
type Rendering struct {
	Name   string
	Render func(nonce string) string
}

// LoginMessage returns the message a wallet is asked to sign for nonce.
func LoginMessage(nonce string) string {
	return LoginMessagePrefix + "\nNonce: " + nonce
}

// LegacyLoginMessage renders the separator as a literal backslash followed by n.
// Older clients signed this form and it is still accepted on verify.
func LegacyLoginMessage(nonce string) string {
	return LoginMessagePrefix + `\nNonce: ` + nonce
}

// LoginMessages is the ordered list of renderings tried on verify.
var LoginMessages = []Rendering{
	{Name: "canonical", Render: LoginMessage},
	{Name: "legacy", Render: LegacyLoginMessage},
}
