package model

type Session struct {
	User  *User
	Token string
}

func (s Session) IsAuthenticated() bool {
	return s.User != nil && s.Token != ""
}
