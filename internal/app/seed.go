package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hylla/civitas/internal/domain"
)

// SeedVersion defines a package constant value.
const SeedVersion = "civitas.seed.v1"

// Seed describes one municipality with its districts, accounts, and sample requests.
type Seed struct {
	Version      string           `json:"version"`
	Municipality SeedMunicipality `json:"municipality"`
	Districts    []SeedDistrict   `json:"districts"`
	Users        []SeedUser       `json:"users"`
	Requests     []SeedRequest    `json:"requests,omitempty"`
}

// SeedMunicipality represents seed municipality data used by this package.
type SeedMunicipality struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// SeedDistrict represents seed district data used by this package.
// Key is the seed-local reference used by users and requests.
type SeedDistrict struct {
	Key  string `json:"key"`
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// SeedUser represents seed user data used by this package.
type SeedUser struct {
	ID       string      `json:"id,omitempty"`
	Email    string      `json:"email"`
	Name     string      `json:"name"`
	Role     domain.Role `json:"role"`
	District string      `json:"district,omitempty"`
}

// SeedRequest represents a sample citizen submission.
type SeedRequest struct {
	District    string `json:"district"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Address     string `json:"address,omitempty"`
}

// SeedResult summarizes what ApplySeed created.
type SeedResult struct {
	Skipped      bool
	Municipality domain.Municipality
	Districts    []domain.District
	Users        []domain.User
	Requests     []domain.Request
}

// DecodeSeed reads one JSON seed document.
func DecodeSeed(r io.Reader) (Seed, error) {
	var seed Seed
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&seed); err != nil {
		return Seed{}, fmt.Errorf("decode seed: %w", err)
	}
	return seed, nil
}

// DefaultSeed returns the demo organization used by `civitas seed`.
func DefaultSeed() Seed {
	return Seed{
		Version:      SeedVersion,
		Municipality: SeedMunicipality{ID: "mun-central", Name: "Central Municipality"},
		Districts: []SeedDistrict{
			{Key: "olaya", ID: "dst-olaya", Name: "Olaya"},
			{Key: "malaz", ID: "dst-malaz", Name: "Malaz"},
			{Key: "naseem", ID: "dst-naseem", Name: "Naseem"},
			{Key: "rabwa", ID: "dst-rabwa", Name: "Rabwa"},
			{Key: "sulaimaniya", ID: "dst-sulaimaniya", Name: "Sulaimaniya"},
		},
		Users: []SeedUser{
			{ID: "usr-admin", Email: "admin@mun.example", Name: "Municipal Admin", Role: domain.RoleMunicipalAdmin},
			{ID: "usr-district1", Email: "district1@mun.example", Name: "Olaya District Admin", Role: domain.RoleDistrictAdmin, District: "olaya"},
			{ID: "usr-district2", Email: "district2@mun.example", Name: "Malaz District Admin", Role: domain.RoleDistrictAdmin, District: "malaz"},
			{ID: "usr-staff1", Email: "staff1@mun.example", Name: "Olaya Technician", Role: domain.RoleStaff, District: "olaya"},
			{ID: "usr-staff2", Email: "staff2@mun.example", Name: "Malaz Technician", Role: domain.RoleStaff, District: "malaz"},
		},
		Requests: []SeedRequest{
			{District: "olaya", Category: "lighting", Description: "Broken street light on King Fahd Road"},
			{District: "olaya", Category: "water", Description: "Water leaking onto the sidewalk"},
			{District: "malaz", Category: "waste", Description: "Bins not emptied for three days"},
			{District: "malaz", Category: "roads", Description: "Large pothole on the main road"},
		},
	}
}

// Validate checks seed references and required fields.
func (s *Seed) Validate() error {
	if s.Version != "" && s.Version != SeedVersion {
		return fmt.Errorf("unsupported seed version %q: %w", s.Version, ErrInvalidInput)
	}
	if strings.TrimSpace(s.Municipality.Name) == "" {
		return fmt.Errorf("municipality.name is required: %w", ErrInvalidInput)
	}

	districtKeys := map[string]struct{}{}
	for i, d := range s.Districts {
		key := strings.TrimSpace(d.Key)
		if key == "" {
			return fmt.Errorf("districts[%d].key is required: %w", i, ErrInvalidInput)
		}
		if strings.TrimSpace(d.Name) == "" {
			return fmt.Errorf("districts[%d].name is required: %w", i, ErrInvalidInput)
		}
		if _, exists := districtKeys[key]; exists {
			return fmt.Errorf("duplicate district key %q: %w", key, ErrInvalidInput)
		}
		districtKeys[key] = struct{}{}
	}

	emails := map[string]struct{}{}
	for i, u := range s.Users {
		email := strings.ToLower(strings.TrimSpace(u.Email))
		if email == "" {
			return fmt.Errorf("users[%d].email is required: %w", i, ErrInvalidInput)
		}
		if _, exists := emails[email]; exists {
			return fmt.Errorf("duplicate user email %q: %w", email, ErrInvalidInput)
		}
		emails[email] = struct{}{}
		if !domain.IsValidRole(u.Role) {
			return fmt.Errorf("users[%d].role %q: %w", i, u.Role, ErrInvalidInput)
		}
		if key := strings.TrimSpace(u.District); key != "" {
			if _, ok := districtKeys[key]; !ok {
				return fmt.Errorf("users[%d] references unknown district %q: %w", i, key, ErrInvalidInput)
			}
		}
	}

	for i, r := range s.Requests {
		if _, ok := districtKeys[strings.TrimSpace(r.District)]; !ok {
			return fmt.Errorf("requests[%d] references unknown district %q: %w", i, r.District, ErrInvalidInput)
		}
	}
	return nil
}

// ApplySeed creates the seeded organization unless a municipality already exists.
func (s *Service) ApplySeed(ctx context.Context, seed Seed) (SeedResult, error) {
	if err := seed.Validate(); err != nil {
		return SeedResult{}, err
	}
	existing, err := s.repo.ListMunicipalities(ctx)
	if err != nil {
		return SeedResult{}, err
	}
	if len(existing) > 0 {
		return SeedResult{Skipped: true, Municipality: existing[0]}, nil
	}

	now := s.clock()
	mun, err := domain.NewMunicipality(s.seedID(seed.Municipality.ID), seed.Municipality.Name, now)
	if err != nil {
		return SeedResult{}, err
	}
	if err := s.repo.CreateMunicipality(ctx, mun); err != nil {
		return SeedResult{}, err
	}
	result := SeedResult{Municipality: mun}

	districtIDs := make(map[string]string, len(seed.Districts))
	for _, d := range seed.Districts {
		district, err := domain.NewDistrict(s.seedID(d.ID), mun.ID, d.Name, now)
		if err != nil {
			return SeedResult{}, err
		}
		if err := s.repo.CreateDistrict(ctx, district); err != nil {
			return SeedResult{}, err
		}
		districtIDs[strings.TrimSpace(d.Key)] = district.ID
		result.Districts = append(result.Districts, district)
	}

	for _, u := range seed.Users {
		user, err := domain.NewUser(domain.UserInput{
			ID:             s.seedID(u.ID),
			Email:          u.Email,
			Name:           u.Name,
			Role:           u.Role,
			MunicipalityID: mun.ID,
			DistrictID:     districtIDs[strings.TrimSpace(u.District)],
		}, now)
		if err != nil {
			return SeedResult{}, fmt.Errorf("seed user %q: %w", u.Email, err)
		}
		if err := s.repo.CreateUser(ctx, user); err != nil {
			return SeedResult{}, err
		}
		result.Users = append(result.Users, user)
	}

	for _, r := range seed.Requests {
		req, err := s.SubmitRequest(ctx, SubmitRequestInput{
			DistrictID:  districtIDs[strings.TrimSpace(r.District)],
			Category:    r.Category,
			Description: r.Description,
			Address:     r.Address,
		})
		if err != nil {
			return SeedResult{}, fmt.Errorf("seed request %q: %w", r.Description, err)
		}
		result.Requests = append(result.Requests, req)
	}
	return result, nil
}

// seedID keeps an explicit seed id or generates one.
func (s *Service) seedID(id string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return s.idGen()
}
