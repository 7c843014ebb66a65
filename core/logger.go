package core

// Logger is implemented by every logging backend of the app.
// args may hold an error, a map[string]interface{} of extras and the logged in user.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
