package model

// DisplayDecision tells the notification layer how to present a fired
// notification. The four flags always move together.
type DisplayDecision struct {
	PlaySound  bool `json:"play_sound"`
	SetBadge   bool `json:"set_badge"`
	ShowBanner bool `json:"show_banner"`
	ShowList   bool `json:"show_list"`
}

// Show presents the notification
func Show() DisplayDecision {
	return DisplayDecision{PlaySound: true, SetBadge: true, ShowBanner: true, ShowList: true}
}

// Suppress hides the notification
func Suppress() DisplayDecision {
	return DisplayDecision{}
}

// Shown reports whether the decision presents the notification
func (d DisplayDecision) Shown() bool {
	return d.ShowBanner
}
