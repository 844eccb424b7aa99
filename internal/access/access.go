// Package access is the authorization core: role profiles made of
// "resource:action" permissions, resource policies and a gate combining
// both. It knows nothing about HTTP or the database.
package access

import (
	"errors"
	"strings"
)

// Action describes the kind of operation a user wants to perform.
type Action string

const (
	ActionView       Action = "view"
	ActionList       Action = "list"
	ActionCreate     Action = "create"
	ActionUpdate     Action = "update"
	ActionDelete     Action = "delete"
	ActionTransition Action = "transition"
	ActionConvert    Action = "convert"
	ActionCheckout   Action = "checkout"
)

// Resource types guarded by the gate.
const (
	ResourceClient   = "client"
	ResourceChantier = "chantier"
	ResourceQuote    = "quote"
	ResourceInvoice  = "invoice"
	ResourceEvent    = "agenda_event"
	ResourceCompany  = "company"
	ResourceBilling  = "billing"
)

var (
	ErrForbidden       = errors.New("forbidden")
	ErrNoPolicyDefined = errors.New("no policy defined for resource")
)

// Permission is "resource:action", e.g. "quote:convert".
type Permission string

// NewPermission creates a permission from resource type and action.
func NewPermission(resourceType string, action Action) Permission {
	return Permission(resourceType + ":" + string(action))
}

// Parse splits a permission into resource type and action.
func (p Permission) Parse() (string, Action) {
	res, act, ok := strings.Cut(string(p), ":")
	if !ok {
		return "", ""
	}
	return res, Action(act)
}

const (
	Wildcard                        = "*"
	PermissionSuperAdmin Permission = "*:*"
)

// Matches reports whether p grants requested. "*:*" grants everything and
// "quote:*" grants every quote action.
func (p Permission) Matches(requested Permission) bool {
	if p == PermissionSuperAdmin || p == requested {
		return true
	}
	res, act := p.Parse()
	reqRes, _ := requested.Parse()
	return res != "" && res == reqRes && string(act) == Wildcard
}
