package rest

const (
	// ContentTypeHeader
	ContentTypeHeader = "Content-Type"
	// JSONContentType
	JSONContentType = "application/json"
	// XMLContentType
	XMLContentType = "text/xml"
	// XmlApplicationContentType
	XmlApplicationContentType = "application/xml"
	// YAMLContentType
	YAMLContentType = "text/yaml"

	// ProxyAuthorizationHeader
	ProxyAuthorizatio = "Proxy-Authorization"
	// AuthorizationHeader
	Authorization = "Authorization"
	// AcceptHeader
	AcceptHeader = "Accept"
	// AcceptEncodingHeader
	AcceptEncodingHeader = "Accept-Encoding"
	// AcceptLanguageHeader
	AcceptLanguageHeader = "Accept-Language"

	// PathSeparator
	PathSeparator = "/"
)
