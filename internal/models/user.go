package models

// Credentials — пара user_id/token для REST и сессии.
type Credentials struct {
	UserID string `yaml:"user_id"`
	Token  string `yaml:"token"`
}

func (c Credentials) Empty() bool { return c.UserID == "" || c.Token == "" }

// UserProfile — данные пользователя после логина.
type UserProfile struct {
	ID        int64  `yaml:"id"`
	FirstName string `yaml:"first_name"`
	LastName  string `yaml:"last_name,omitempty"`
	Username  string `yaml:"username,omitempty"`
	PhotoURL  string `yaml:"photo_url,omitempty"`
}
