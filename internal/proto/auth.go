package proto

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// AuthAllowed is a credential mechanism the server currently accepts for a
// principal.
type AuthAllowed int

const (
	AllowedAnonymous AuthAllowed = iota
	AllowedPassword
)

func (a AuthAllowed) String() string {
	switch a {
	case AllowedAnonymous:
		return "Anonymous"
	case AllowedPassword:
		return "Password"
	default:
		return "Unknown"
	}
}

func (a AuthAllowed) MarshalJSON() ([]byte, error) {
	if a != AllowedAnonymous && a != AllowedPassword {
		return nil, fmt.Errorf("proto: unknown auth mechanism %d", a)
	}
	return json.Marshal(a.String())
}

func (a *AuthAllowed) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("proto: malformed auth mechanism: %w", err)
	}
	switch name {
	case "Anonymous":
		*a = AllowedAnonymous
	case "Password":
		*a = AllowedPassword
	default:
		return fmt.Errorf("proto: unknown auth mechanism %q", name)
	}
	return nil
}

// AuthCredentialKind discriminates supplied credential variants.
type AuthCredentialKind int

const (
	CredentialAnonymous AuthCredentialKind = iota
	CredentialPassword
)

// AuthCredential is one credential supplied during a Creds step. Secret is
// only meaningful for the password variant and never appears in logs.
type AuthCredential struct {
	Kind   AuthCredentialKind
	Secret string
}

// AnonymousCredential builds the anonymous credential.
func AnonymousCredential() AuthCredential {
	return AuthCredential{Kind: CredentialAnonymous}
}

// PasswordCredential builds a password credential.
func PasswordCredential(secret string) AuthCredential {
	return AuthCredential{Kind: CredentialPassword, Secret: secret}
}

// Mechanism maps the credential to the mechanism it satisfies.
func (c AuthCredential) Mechanism() AuthAllowed {
	if c.Kind == CredentialPassword {
		return AllowedPassword
	}
	return AllowedAnonymous
}

func (c AuthCredential) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case CredentialAnonymous:
		return json.Marshal("Anonymous")
	case CredentialPassword:
		return json.Marshal(map[string]string{"Password": c.Secret})
	default:
		return nil, fmt.Errorf("proto: unknown credential kind %d", c.Kind)
	}
}

func (c *AuthCredential) UnmarshalJSON(data []byte) error {
	var unit string
	if err := json.Unmarshal(data, &unit); err == nil {
		if unit != "Anonymous" {
			return fmt.Errorf("proto: unknown credential variant %q", unit)
		}
		*c = AnonymousCredential()
		return nil
	}
	var tagged map[string]string
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("proto: malformed credential: %w", err)
	}
	secret, ok := tagged["Password"]
	if !ok || len(tagged) != 1 {
		return fmt.Errorf("proto: malformed credential")
	}
	*c = PasswordCredential(secret)
	return nil
}

// AuthStepKind discriminates negotiation step variants.
type AuthStepKind int

const (
	// StepInit opens a negotiation by claiming a principal name.
	StepInit AuthStepKind = iota
	// StepCreds submits credentials against an open negotiation.
	StepCreds
)

// AuthStep is one client step of the negotiation. Name and AppID belong to
// Init; Creds belongs to the credential step.
type AuthStep struct {
	Kind  AuthStepKind
	Name  string
	AppID *string
	Creds []AuthCredential
}

// InitStep builds the opening step. appID may be nil.
func InitStep(name string, appID *string) AuthStep {
	return AuthStep{Kind: StepInit, Name: name, AppID: appID}
}

// CredsStep builds a credential-submission step.
func CredsStep(creds ...AuthCredential) AuthStep {
	return AuthStep{Kind: StepCreds, Creds: creds}
}

func (s AuthStep) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case StepInit:
		return json.Marshal(map[string][2]any{"Init": {s.Name, s.AppID}})
	case StepCreds:
		creds := s.Creds
		if creds == nil {
			creds = []AuthCredential{}
		}
		return json.Marshal(map[string][]AuthCredential{"Creds": creds})
	default:
		return nil, fmt.Errorf("proto: unknown auth step kind %d", s.Kind)
	}
}

func (s *AuthStep) UnmarshalJSON(data []byte) error {
	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("proto: malformed auth step: %w", err)
	}
	if len(tagged) != 1 {
		return fmt.Errorf("proto: auth step must carry exactly one variant tag")
	}
	for tag, raw := range tagged {
		switch tag {
		case "Init":
			var tuple []json.RawMessage
			if err := json.Unmarshal(raw, &tuple); err != nil {
				return fmt.Errorf("proto: malformed Init step: %w", err)
			}
			if len(tuple) != 2 {
				return fmt.Errorf("proto: Init step must carry name and application id")
			}
			var name string
			if err := json.Unmarshal(tuple[0], &name); err != nil {
				return fmt.Errorf("proto: malformed Init step name: %w", err)
			}
			var appID *string
			if err := json.Unmarshal(tuple[1], &appID); err != nil {
				return fmt.Errorf("proto: malformed Init step application id: %w", err)
			}
			*s = InitStep(name, appID)
		case "Creds":
			var creds []AuthCredential
			if err := json.Unmarshal(raw, &creds); err != nil {
				return fmt.Errorf("proto: malformed Creds step: %w", err)
			}
			*s = AuthStep{Kind: StepCreds, Creds: creds}
		default:
			return fmt.Errorf("proto: unknown auth step variant %q", tag)
		}
	}
	return nil
}

// AuthStateKind discriminates negotiation outcome variants.
type AuthStateKind int

const (
	// StateContinue names the mechanisms still acceptable for the principal.
	StateContinue AuthStateKind = iota
	// StateSuccess carries the issued token; terminal.
	StateSuccess
	// StateDenied carries a generic human-readable reason; terminal.
	StateDenied
)

// AuthState is the server side of one negotiation step.
type AuthState struct {
	Kind    AuthStateKind
	Token   *UserAuthToken
	Reason  string
	Allowed []AuthAllowed
}

// ContinueState builds a Continue response with the allowed mechanisms.
func ContinueState(allowed ...AuthAllowed) AuthState {
	return AuthState{Kind: StateContinue, Allowed: allowed}
}

// SuccessState builds the terminal Success response.
func SuccessState(token UserAuthToken) AuthState {
	return AuthState{Kind: StateSuccess, Token: &token}
}

// DeniedState builds the terminal Denied response. The reason must stay
// generic; it must never distinguish which part of a multi-mechanism check
// failed.
func DeniedState(reason string) AuthState {
	return AuthState{Kind: StateDenied, Reason: reason}
}

func (s AuthState) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case StateSuccess:
		return json.Marshal(map[string]*UserAuthToken{"Success": s.Token})
	case StateDenied:
		return json.Marshal(map[string]string{"Denied": s.Reason})
	case StateContinue:
		allowed := s.Allowed
		if allowed == nil {
			allowed = []AuthAllowed{}
		}
		return json.Marshal(map[string][]AuthAllowed{"Continue": allowed})
	default:
		return nil, fmt.Errorf("proto: unknown auth state kind %d", s.Kind)
	}
}

func (s *AuthState) UnmarshalJSON(data []byte) error {
	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("proto: malformed auth state: %w", err)
	}
	if len(tagged) != 1 {
		return fmt.Errorf("proto: auth state must carry exactly one variant tag")
	}
	for tag, raw := range tagged {
		switch tag {
		case "Success":
			var token UserAuthToken
			if err := json.Unmarshal(raw, &token); err != nil {
				return fmt.Errorf("proto: malformed Success state: %w", err)
			}
			*s = SuccessState(token)
		case "Denied":
			var reason string
			if err := json.Unmarshal(raw, &reason); err != nil {
				return fmt.Errorf("proto: malformed Denied state: %w", err)
			}
			*s = DeniedState(reason)
		case "Continue":
			var allowed []AuthAllowed
			if err := json.Unmarshal(raw, &allowed); err != nil {
				return fmt.Errorf("proto: malformed Continue state: %w", err)
			}
			*s = AuthState{Kind: StateContinue, Allowed: allowed}
		default:
			return fmt.Errorf("proto: unknown auth state variant %q", tag)
		}
	}
	return nil
}

// AuthRequest wraps one negotiation step for the wire.
type AuthRequest struct {
	Step AuthStep `json:"step"`
}

// AuthResponse carries the session identifier binding successive steps
// together plus the resulting state.
type AuthResponse struct {
	SessionID uuid.UUID `json:"sessionid"`
	State     AuthState `json:"state"`
}
