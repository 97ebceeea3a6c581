package beacon

// ResponseMode specifies how the server instructs the user agent to deliver
// the authentication response to the redirect URI of the client.
type ResponseMode string

const (
	// ResponseModeFragment sends the response data in the URL fragment.
	//
	// Additional client-side JavaScript is required to use this mode,
	// because the URL fragment is not sent to the server.
	ResponseModeFragment ResponseMode = "fragment"

	// ResponseModeFormPost sends the response data in a POST request with
	// an application/x-www-form-urlencoded body. This is the default.
	ResponseModeFormPost ResponseMode = "form_post"
)
