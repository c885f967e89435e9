package domain

import (
	"strings"
	"time"
)

// Municipality is the top-level organizational unit.
type Municipality struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// NewMunicipality constructs a normalized municipality.
func NewMunicipality(id, name string, now time.Time) (Municipality, error) {
	id = strings.TrimSpace(id)
	name = strings.TrimSpace(name)
	if id == "" {
		return Municipality{}, ErrInvalidID
	}
	if name == "" {
		return Municipality{}, ErrInvalidName
	}
	return Municipality{ID: id, Name: name, CreatedAt: now.UTC()}, nil
}

// District is a subdivision of one municipality.
type District struct {
	ID             string
	MunicipalityID string
	Name           string
	CreatedAt      time.Time
}

// NewDistrict constructs a normalized district.
func NewDistrict(id, municipalityID, name string, now time.Time) (District, error) {
	id = strings.TrimSpace(id)
	municipalityID = strings.TrimSpace(municipalityID)
	name = strings.TrimSpace(name)
	if id == "" || municipalityID == "" {
		return District{}, ErrInvalidID
	}
	if name == "" {
		return District{}, ErrInvalidName
	}
	return District{ID: id, MunicipalityID: municipalityID, Name: name, CreatedAt: now.UTC()}, nil
}

// User is a persisted account bound to an organizational unit.
type User struct {
	ID             string
	Email          string
	Name           string
	Role           Role
	MunicipalityID string
	DistrictID     string
	CreatedAt      time.Time
}

// UserInput holds input values for user creation.
type UserInput struct {
	ID             string
	Email          string
	Name           string
	Role           Role
	MunicipalityID string
	DistrictID     string
}

// NewUser constructs a normalized user with a role-consistent binding.
func NewUser(in UserInput, now time.Time) (User, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	if in.ID == "" {
		return User{}, ErrInvalidID
	}
	if in.Name == "" || in.Email == "" {
		return User{}, ErrInvalidName
	}
	actor, err := NewActingUser(in.ID, in.Name, in.Role, in.MunicipalityID, in.DistrictID)
	if err != nil {
		return User{}, err
	}
	return User{
		ID:             actor.ID,
		Email:          in.Email,
		Name:           actor.Name,
		Role:           actor.Role,
		MunicipalityID: actor.MunicipalityID,
		DistrictID:     actor.DistrictID,
		CreatedAt:      now.UTC(),
	}, nil
}

// Actor returns the engine-facing view of the user.
func (u User) Actor() ActingUser {
	return ActingUser{
		ID:             u.ID,
		Name:           u.Name,
		Role:           u.Role,
		MunicipalityID: u.MunicipalityID,
		DistrictID:     u.DistrictID,
	}
}
