package sanitize

// FieldErrors maps a form field name to the first message that applies to it.
// An empty map means the form is valid.
type FieldErrors map[string]string

// OK reports whether no field failed validation.
func (f FieldErrors) OK() bool {
	return len(f) == 0
}

// RegistrationForm mirrors the account registration form.
type RegistrationForm struct {
	FirstName       string
	LastName        string
	Email           string
	Phone           string
	Password        string
	ConfirmPassword string
}

// VolunteerForm mirrors the volunteer application form.
type VolunteerForm struct {
	FirstName        string
	LastName         string
	Email            string
	Phone            string
	University       string
	YearOfStudy      string
	Skills           []string
	Availability     []string
	Motivation       string
	Experience       string
	EmergencyContact string
	EmergencyPhone   string
}

// ValidateLogin checks the login form fields.
func ValidateLogin(email, password string) FieldErrors {
	errs := FieldErrors{}
	checkEmail(errs, email)
	if !Required(password) {
		errs["password"] = "Password is required"
	}
	return errs
}

// ValidateRegistration checks the registration form. Only the first password
// rule violation is reported for the password field.
func ValidateRegistration(f RegistrationForm) FieldErrors {
	errs := FieldErrors{}

	if !Required(f.FirstName) {
		errs["firstName"] = "First name is required"
	}
	if !Required(f.LastName) {
		errs["lastName"] = "Last name is required"
	}
	checkEmail(errs, f.Email)

	if !Required(f.Password) {
		errs["password"] = "Password is required"
	} else if res := Password(f.Password); !res.Valid {
		errs["password"] = res.FirstMessage()
	}

	if !Required(f.ConfirmPassword) {
		errs["confirmPassword"] = "Please confirm your password"
	} else if f.Password != f.ConfirmPassword {
		errs["confirmPassword"] = "Passwords do not match"
	}

	return errs
}

// ValidateVolunteer checks the volunteer application form.
func ValidateVolunteer(f VolunteerForm) FieldErrors {
	errs := FieldErrors{}

	if !Required(f.FirstName) {
		errs["firstName"] = "First name is required"
	}
	if !Required(f.LastName) {
		errs["lastName"] = "Last name is required"
	}
	checkEmail(errs, f.Email)
	if !Required(f.Phone) {
		errs["phone"] = "Phone number is required"
	}
	if !Required(f.University) {
		errs["university"] = "University is required"
	}
	if f.YearOfStudy == "" {
		errs["yearOfStudy"] = "Year of study is required"
	}
	if len(f.Skills) == 0 {
		errs["skills"] = "Please select at least one skill"
	}
	if len(f.Availability) == 0 {
		errs["availability"] = "Please select your availability"
	}
	if !Required(f.Motivation) {
		errs["motivation"] = "Please share your motivation"
	}
	if !Required(f.EmergencyContact) {
		errs["emergencyContact"] = "Emergency contact is required"
	}
	if !Required(f.EmergencyPhone) {
		errs["emergencyPhone"] = "Emergency phone is required"
	}

	return errs
}

func checkEmail(errs FieldErrors, email string) {
	switch {
	case !Required(email):
		errs["email"] = "Email is required"
	case !ValidEmail(trimSpace(email)):
		errs["email"] = "Please enter a valid email address"
	}
}
