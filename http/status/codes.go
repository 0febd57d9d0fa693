package status

import "strconv"

type (
	Code   uint16
	Status string
)

// Only the codes lingdar might ever answer with are listed. The rest of the IANA registry
// is rendered as a bare number with "Unknown Status Code" reason phrase.
const (
	Continue           Code = 100
	SwitchingProtocols Code = 101

	OK             Code = 200
	Created        Code = 201
	Accepted       Code = 202
	NoContent      Code = 204
	PartialContent Code = 206

	MovedPermanently  Code = 301
	Found             Code = 302
	SeeOther          Code = 303
	NotModified       Code = 304
	TemporaryRedirect Code = 307
	PermanentRedirect Code = 308

	BadRequest            Code = 400
	Unauthorized          Code = 401
	Forbidden             Code = 403
	NotFound              Code = 404
	MethodNotAllowed      Code = 405
	RequestTimeout        Code = 408
	LengthRequired        Code = 411
	RequestEntityTooLarge Code = 413
	RequestURITooLong     Code = 414
	UnsupportedMediaType  Code = 415
	Teapot                Code = 418
	Locked                Code = 423
	TooManyRequests       Code = 429
	HeaderFieldsTooLarge  Code = 431

	InternalServerError     Code = 500
	NotImplemented          Code = 501
	BadGateway              Code = 502
	ServiceUnavailable      Code = 503
	HTTPVersionNotSupported Code = 505

	// CloseConnection isn't a real status code. It tells the server to close the connection
	// silently, without writing anything back.
	CloseConnection Code = 1
)

var texts = map[Code]Status{
	Continue:                "Continue",
	SwitchingProtocols:      "Switching Protocols",
	OK:                      "OK",
	Created:                 "Created",
	Accepted:                "Accepted",
	NoContent:               "No Content",
	PartialContent:          "Partial Content",
	MovedPermanently:        "Moved Permanently",
	Found:                   "Found",
	SeeOther:                "See Other",
	NotModified:             "Not Modified",
	TemporaryRedirect:       "Temporary Redirect",
	PermanentRedirect:       "Permanent Redirect",
	BadRequest:              "Bad Request",
	Unauthorized:            "Unauthorized",
	Forbidden:               "Forbidden",
	NotFound:                "Not Found",
	MethodNotAllowed:        "Method Not Allowed",
	RequestTimeout:          "Request Timeout",
	LengthRequired:          "Length Required",
	RequestEntityTooLarge:   "Request Entity Too Large",
	RequestURITooLong:       "Request URI Too Long",
	UnsupportedMediaType:    "Unsupported Media Type",
	Teapot:                  "I'm a teapot",
	Locked:                  "Locked",
	TooManyRequests:         "Too Many Requests",
	HeaderFieldsTooLarge:    "Request Header Fields Too Large",
	InternalServerError:     "Internal Server Error",
	NotImplemented:          "Not Implemented",
	BadGateway:              "Bad Gateway",
	ServiceUnavailable:      "Service Unavailable",
	HTTPVersionNotSupported: "HTTP Version Not Supported",
}

// KnownCodes lists every code having a reason phrase.
var KnownCodes = func() []Code {
	codes := make([]Code, 0, len(texts))
	for code := range texts {
		codes = append(codes, code)
	}

	return codes
}()

// Text returns a reason phrase for the code.
func Text(code Code) Status {
	if text, found := texts[code]; found {
		return text
	}

	return "Unknown Status Code"
}

var lines = func() map[Code]string {
	m := make(map[Code]string, len(texts))
	for code, text := range texts {
		m[code] = "HTTP/1.1 " + strconv.Itoa(int(code)) + " " + string(text) + "\r\n"
	}

	return m
}()

// Line returns the HTTP/1.1 status line, including the trailing CRLF. Lines for known codes
// are pre-rendered.
func Line(code Code) string {
	if line, found := lines[code]; found {
		return line
	}

	return "HTTP/1.1 " + StringCode(code) + " " + string(Text(code)) + "\r\n"
}

// StringCode is strconv.Itoa for codes.
func StringCode(code Code) string {
	return strconv.Itoa(int(code))
}
