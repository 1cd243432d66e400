package domain

// User role values.
const (
	UserTypeCustomer   = "customer"
	UserTypeTranslator = "translator"
)

// Translator type values; bijective with job types (paid/rws/unpaid).
const (
	TranslatorProfessional = "professional"
	TranslatorRWS          = "rwstranslator"
	TranslatorVolunteer    = "volunteer"
)

// Certification levels a translator can hold. The literals match the stored
// profile values of the upstream user service.
const (
	LevelCertified       = "Certified"
	LevelCertifiedLaw    = "Certified with specialisation in law"
	LevelCertifiedHealth = "Certified with specialisation in health care"
	LevelLayman          = "Layman"
	LevelReadCourses     = "Read Translation courses"
)

// Consumer type values on a customer profile.
const (
	ConsumerPaid = "paid"
	ConsumerRWS  = "rwsconsumer"
	ConsumerNGO  = "ngo"
)

// User is the slice of the user record the booking core needs.
type User struct {
	ID     string `db:"user_id"`
	Name   string `db:"name"`
	Email  string `db:"email"`
	Mobile string `db:"mobile"`
	Type   string `db:"user_type"`
	Active bool   `db:"active"`
}

// TranslatorProfile is the read-mostly translator metadata owned by the user
// collaborator. Languages holds spoken language ids.
type TranslatorProfile struct {
	UserID             string  `db:"user_id"`
	TranslatorType     string  `db:"translator_type"`
	TranslatorLevel    string  `db:"translator_level"`
	Gender             string  `db:"gender"`
	Town               string  `db:"town"`
	Languages          []int64 `db:"-"`
	NotGetNotification bool    `db:"not_get_notification"`
	NotGetEmergency    bool    `db:"not_get_emergency"`
	NotGetNighttime    bool    `db:"not_get_nighttime"`
}

// Translator is a user joined with their profile; what the matcher works on.
type Translator struct {
	User
	TranslatorProfile
}

// CustomerProfile is the requester metadata the core reads.
type CustomerProfile struct {
	UserID       string `db:"user_id"`
	ConsumerType string `db:"consumer_type"`
	CustomerType string `db:"customer_type"`
	Town         string `db:"town"`
	Address      string `db:"address"`
	Instructions string `db:"instructions"`
}
