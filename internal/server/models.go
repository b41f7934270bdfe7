package server

// HTTPError is a generic error envelope returned by the server.
type HTTPError struct {
	Error string `json:"error"`
}

// AuthSignupRequest represents the recruiter signup payload.
type AuthSignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthLoginRequest represents the login payload.
type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse carries a bearer token.
type TokenResponse struct {
	Token string `json:"token"`
}

// IDResponse is a generic id response wrapper.
type IDResponse struct {
	ID string `json:"id"`
}

// CreateJobRequest represents a new job posting payload.
type CreateJobRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Skills      []string `json:"skills"`
}

// JobResponse is a stored job posting view.
type JobResponse struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Skills      []string `json:"skills"`
	Active      bool     `json:"active"`
}

// CreateApplicationRequest carries a candidate's application for a job.
type CreateApplicationRequest struct {
	CandidateName  string `json:"candidate_name"`
	CandidateEmail string `json:"candidate_email"`
	ResumeText     string `json:"resume_text"`
}

// ApplicationResponse is the recruiter-facing view of an application.
type ApplicationResponse struct {
	ID              string   `json:"id"`
	JobID           string   `json:"job_id,omitempty"`
	CandidateName   string   `json:"candidate_name"`
	CandidateEmail  string   `json:"candidate_email"`
	ScreeningScore  int      `json:"screening_score"`
	Summary         string   `json:"summary"`
	MissingSkills   []string `json:"missing_skills,omitempty"`
	AssessmentScore *int     `json:"assessment_score,omitempty"`
	Status          string   `json:"status"`
	RejectReason    string   `json:"reject_reason,omitempty"`
	CandidateToken  string   `json:"candidate_token,omitempty"`
}

// SubmitAnswersRequest carries the candidate's full answer sheet. A null entry
// means the question was left blank.
type SubmitAnswersRequest struct {
	Answers []*int `json:"answers"`
}

// SubmitAnswersResponse reports the deterministic grading outcome.
type SubmitAnswersResponse struct {
	Score   int    `json:"score"`
	Correct int    `json:"correct"`
	Total   int    `json:"total"`
	Status  string `json:"status"`
}

// DecisionRequest carries an optional reason for a manual status decision.
type DecisionRequest struct {
	Reason string `json:"reason"`
}

// UploadKnowledgeRequest carries one knowledge-base document.
type UploadKnowledgeRequest struct {
	Name       string `json:"name"`
	SourcePath string `json:"source_path"`
	Text       string `json:"text"`
}

// KnowledgeUploadResponse reports how the document was chunked and indexed.
type KnowledgeUploadResponse struct {
	DocumentID string             `json:"document_id"`
	Indexed    []string           `json:"indexed"`
	Failed     []KnowledgeFailure `json:"failed,omitempty"`
}

// KnowledgeFailure names a chunk that did not index.
type KnowledgeFailure struct {
	ChunkID string `json:"chunk_id"`
	Reason  string `json:"reason"`
}

// KnowledgeSearchResponse is one retrieval hit.
type KnowledgeSearchResponse struct {
	ChunkID      string  `json:"chunk_id"`
	DocumentName string  `json:"document_name"`
	Text         string  `json:"text"`
	Distance     float64 `json:"distance"`
}

// StartSessionRequest carries the recruiter's choice of assessment difficulty.
// Empty means medium.
type StartSessionRequest struct {
	Difficulty string `json:"difficulty"`
}

// SessionResponse describes a freshly created assessment session.
type SessionResponse struct {
	SessionID     string `json:"session_id"`
	ApplicationID string `json:"application_id"`
	Difficulty    string `json:"difficulty"`
	Aptitude      int    `json:"aptitude_questions"`
	Technical     int    `json:"technical_questions"`
}
