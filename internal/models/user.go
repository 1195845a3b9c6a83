package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Role holds the metadata stored under a role key. Admin role metadata
// carries the admin group memberships used by privileged authorization.
type Role struct {
	ID     string            `json:"id,omitempty"`
	Name   string            `json:"name,omitempty"`
	Groups map[string]string `json:"groups,omitempty"`
}

// RoleSet maps a role name to its metadata. Stored as a jsonb column.
type RoleSet map[string]Role

func (r RoleSet) Value() (driver.Value, error) {
	if r == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(r)
}

func (r *RoleSet) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*r = RoleSet{}
		return nil
	case []byte:
		return json.Unmarshal(v, r)
	case string:
		return json.Unmarshal([]byte(v), r)
	default:
		return fmt.Errorf("unsupported roles column type %T", src)
	}
}

type User struct {
	ID           string    `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	IsActive     bool      `db:"is_active" json:"isActive"`
	Roles        RoleSet   `db:"roles" json:"roles"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// HasRole reports whether the user holds any of the given roles.
func (u *User) HasRole(names ...string) bool {
	for _, name := range names {
		if _, ok := u.Roles[name]; ok {
			return true
		}
	}
	return false
}

// InAdminGroup reports whether the user's admin role belongs to the group.
func (u *User) InAdminGroup(group string) bool {
	admin, ok := u.Roles["admin"]
	if !ok {
		return false
	}
	_, ok = admin.Groups[group]
	return ok
}

// Project returns only the named json fields of the user document.
// Unknown field names are ignored.
func (u *User) Project(fields ...string) map[string]interface{} {
	raw, _ := json.Marshal(u)
	var doc map[string]interface{}
	_ = json.Unmarshal(raw, &doc)

	out := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		if v, ok := doc[f]; ok {
			out[f] = v
		}
	}
	return out
}

// UserUpdate is the field set applied by the update operations. A nil
// IsActive leaves activation untouched; self updates cannot change it.
type UserUpdate struct {
	Username string
	Email    string
	IsActive *bool
}

// UserFilter narrows a paged listing.
type UserFilter struct {
	Username string // substring, case-insensitive
	IsActive *bool
	Role     string // role key must exist
	Sort     string // column name, "-" prefix for descending
	Limit    int
	Page     int
}

// UserPage is one page of a listing plus its pagination metadata.
type UserPage struct {
	Data  []User   `json:"data"`
	Pages PageInfo `json:"pages"`
	Items ItemInfo `json:"items"`
}

type PageInfo struct {
	Current int  `json:"current"`
	Prev    int  `json:"prev"`
	HasPrev bool `json:"hasPrev"`
	Next    int  `json:"next"`
	HasNext bool `json:"hasNext"`
	Total   int  `json:"total"`
}

type ItemInfo struct {
	Limit int `json:"limit"`
	Begin int `json:"begin"`
	End   int `json:"end"`
	Total int `json:"total"`
}

// NewUserPage fills in pagination metadata for a page of results.
func NewUserPage(data []User, total, limit, page int) *UserPage {
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}

	end := page * limit
	if end > total {
		end = total
	}

	return &UserPage{
		Data: data,
		Pages: PageInfo{
			Current: page,
			Prev:    page - 1,
			HasPrev: page > 1,
			Next:    page + 1,
			HasNext: page < totalPages,
			Total:   totalPages,
		},
		Items: ItemInfo{
			Limit: limit,
			Begin: (page-1)*limit + 1,
			End:   end,
			Total: total,
		},
	}
}
