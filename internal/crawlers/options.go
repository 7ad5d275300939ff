package crawlers

import "time"

// Target holds the application URLs.
type Target struct {
	LoginURL string `mapstructure:"login_url"`
	ListURL  string `mapstructure:"list_url"`
}

// Credentials are the login form values.
type Credentials struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// Timeouts bound every browser wait.
type Timeouts struct {
	Login  time.Duration `mapstructure:"login"`  // login submit until landing marker
	List   time.Duration `mapstructure:"list"`   // list navigation until rows appear
	Pager  time.Duration `mapstructure:"pager"`  // one next-page transition
	Detail time.Duration `mapstructure:"detail"` // item click until detail marker
	Item   time.Duration `mapstructure:"item"`   // one whole extraction attempt
}

// DefaultTimeouts returns the default bounds.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Login:  30 * time.Second,
		List:   30 * time.Second,
		Pager:  15 * time.Second,
		Detail: 15 * time.Second,
		Item:   2 * time.Minute,
	}
}

// Selectors locate the interactive parts of the UI.
type Selectors struct {
	LoginField    string `mapstructure:"login_field"`
	PasswordField string `mapstructure:"password_field"`
	Submit        string `mapstructure:"submit"`
	Landing       string `mapstructure:"landing"` // present once logged in

	Row          string `mapstructure:"row"`
	ID           string `mapstructure:"id"`
	Next         string `mapstructure:"next"`
	Pager        string `mapstructure:"pager"`
	DetailMarker string `mapstructure:"detail_marker"` // present once a detail form rendered
}

// DefaultSelectors match Odoo 17.
func DefaultSelectors() Selectors {
	return Selectors{
		LoginField:    `input[name="login"]`,
		PasswordField: `input[name="password"]`,
		Submit:        `button[type="submit"]`,
		Landing:       ".o_web_client",
		Row:           "tr.o_data_row",
		ID:            `td[name="name"]`,
		Next:          "button.o_pager_next",
		Pager:         ".o_pager_value",
		DetailMarker:  ".o_field_res_partner_many2one",
	}
}
