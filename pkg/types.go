package pkg

// Patient is the per-identifier aggregate kept by the record store.  The
// identifier is the authenticated user's email for self-service records or
// the name supplied by the therapist when the record is created explicitly.
type Patient struct {
	Name            string         `json:"name"`
	Age             *int           `json:"age,omitempty"`
	InjuryLocation  *string        `json:"injury_location,omitempty"`
	PainLevel       *int           `json:"pain_level,omitempty"`
	MobilityStatus  *string        `json:"mobility_status,omitempty"`
	MedicalHistory  *string        `json:"medical_history,omitempty"`
	ActivityLevel   *string        `json:"activity_level,omitempty"`
	Goals           *string        `json:"goals,omitempty"`
	Injuries        []Injury       `json:"injuries"`
	WeeklySchedule  WeeklySchedule `json:"weekly_schedule"`
	Recommendations []Exercise     `json:"recommendations,omitempty"`
}

// NewPatient returns an empty record with no injuries and a blank schedule.
func NewPatient(name string) *Patient {
	return &Patient{
		Name:           name,
		Injuries:       []Injury{},
		WeeklySchedule: NewWeeklySchedule(),
	}
}

// PatientProfile carries the optional profile fields.  It is used both for
// explicit creation and for partial updates, where only non-nil fields are
// applied.
type PatientProfile struct {
	Age            *int    `json:"age,omitempty" validate:"omitempty,min=0,max=130"`
	InjuryLocation *string `json:"injury_location,omitempty"`
	PainLevel      *int    `json:"pain_level,omitempty" validate:"omitempty,min=0,max=10"`
	MobilityStatus *string `json:"mobility_status,omitempty"`
	MedicalHistory *string `json:"medical_history,omitempty"`
	ActivityLevel  *string `json:"activity_level,omitempty"`
	Goals          *string `json:"goals,omitempty"`
}

// Apply merges the non-nil profile fields into p.
func (u PatientProfile) Apply(p *Patient) {
	if u.Age != nil {
		p.Age = u.Age
	}
	if u.InjuryLocation != nil {
		p.InjuryLocation = u.InjuryLocation
	}
	if u.PainLevel != nil {
		p.PainLevel = u.PainLevel
	}
	if u.MobilityStatus != nil {
		p.MobilityStatus = u.MobilityStatus
	}
	if u.MedicalHistory != nil {
		p.MedicalHistory = u.MedicalHistory
	}
	if u.ActivityLevel != nil {
		p.ActivityLevel = u.ActivityLevel
	}
	if u.Goals != nil {
		p.Goals = u.Goals
	}
}

// Profile extracts the profile fields of p.
func (p *Patient) Profile() PatientProfile {
	return PatientProfile{
		Age:            p.Age,
		InjuryLocation: p.InjuryLocation,
		PainLevel:      p.PainLevel,
		MobilityStatus: p.MobilityStatus,
		MedicalHistory: p.MedicalHistory,
		ActivityLevel:  p.ActivityLevel,
		Goals:          p.Goals,
	}
}

// Injury is one reported complaint.  The SINSS severities are recorded as
// reported; best may exceed worst.  Diagnosis, Reasoning and
// Recommendations are filled in once the assistant has analysed it.
type Injury struct {
	BodyPart            string         `json:"body_part" validate:"required"`
	HurtingDescription  string         `json:"hurting_description" validate:"required"`
	DateOfOnset         *string        `json:"date_of_onset,omitempty"`
	AggravatingFactors  *string        `json:"aggravating_factors,omitempty"`
	EasingFactors       *string        `json:"easing_factors,omitempty"`
	MechanismOfInjury   *string        `json:"mechanism_of_injury,omitempty"`
	SeverityBest        *int           `json:"severity_best,omitempty" validate:"omitempty,min=0,max=10"`
	SeverityWorst       *int           `json:"severity_worst,omitempty" validate:"omitempty,min=0,max=10"`
	SeverityDailyAvg    *int           `json:"severity_daily_avg,omitempty" validate:"omitempty,min=0,max=10"`
	IrritabilityFactors *string        `json:"irritability_factors,omitempty"`
	NatureOfPain        *string        `json:"nature_of_pain,omitempty"`
	Stage               *string        `json:"stage,omitempty"`
	Stability           *string        `json:"stability,omitempty"`
	SpecializedData     map[string]any `json:"specialized_data"`
	Diagnosis           string         `json:"diagnosis,omitempty"`
	Reasoning           string         `json:"reasoning,omitempty"`
	Recommendations     string         `json:"recommendations,omitempty"`
}

// ChatRole is the author of a chat message.
type ChatRole string

const (
	RoleSystem    ChatRole = "system"
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// ChatMessage is one turn of the conversation with the assistant.
type ChatMessage struct {
	Role    ChatRole `json:"role" validate:"required,oneof=system user assistant"`
	Content string   `json:"content"`
}

// ChatRequest is the body of the chat endpoint.
type ChatRequest struct {
	Messages []ChatMessage `json:"messages" validate:"required,min=1,dive"`
}

// ExerciseRequest asks the assistant for a list of exercise recommendations.
type ExerciseRequest struct {
	PatientName  string  `json:"patient_name,omitempty"`
	InjuryType   string  `json:"injury_type" validate:"required"`
	PainLevel    int     `json:"pain_level" validate:"min=0,max=10"`
	Goals        *string `json:"goals,omitempty"`
	NumExercises int     `json:"num_exercises" validate:"omitempty,min=1,max=20"`
}

// DiagnosisResult is the assistant's preliminary analysis of an injury.
type DiagnosisResult struct {
	Diagnosis       string `json:"diagnosis"`
	Reasoning       string `json:"reasoning"`
	Recommendations string `json:"recommendations"`
}
