package viewmodel

type Layout struct {
	Page    string
	Title   string
	AppName string
	IsDev   bool
}
