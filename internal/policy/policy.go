// Package policy decides whether an actor may perform a method on a resource.
//
// Decide is a pure function: callers resolve the actor's current role from
// the identity store on every request (never from the bearer token) and
// describe the target with an explicit Kind tag plus ownership facts.
package policy

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/catalog-reviews/internal/domain"
)

// Kind is the closed set of resource types the policy knows about.
type Kind int

const (
	KindTitle Kind = iota + 1
	KindCategory
	KindGenre
	KindReview
	KindComment
	KindUserAccount
)

func (k Kind) String() string {
	switch k {
	case KindTitle:
		return "title"
	case KindCategory:
		return "category"
	case KindGenre:
		return "genre"
	case KindReview:
		return "review"
	case KindComment:
		return "comment"
	case KindUserAccount:
		return "user account"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Actor is the caller. The zero value is an anonymous caller.
type Actor struct {
	UserID string
	Role   domain.Role
}

// ActorFromUser builds an Actor from a freshly loaded user. A nil user is anonymous.
func ActorFromUser(u *domain.User) Actor {
	if u == nil {
		return Actor{}
	}
	return Actor{UserID: u.UserID, Role: u.Role}
}

// Authenticated reports whether the actor is a known user.
func (a Actor) Authenticated() bool { return a.UserID != "" }

// Resource describes the target of a request.
type Resource struct {
	Kind Kind

	// OwnerID is the author of an existing review or comment, or the account
	// being edited for KindUserAccount. Empty when the object does not exist
	// yet (creation).
	OwnerID string

	// Self marks an account edit made through the self-service ("me") path.
	Self bool

	// RoleChange marks an account edit that would change the stored role.
	RoleChange bool
}

// Decision is the outcome of Decide. Reason explains a deny and is meant for logs.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision { return Decision{Allowed: true} }

func deny(format string, args ...any) Decision {
	return Decision{Reason: fmt.Sprintf(format, args...)}
}

// IsSafe reports whether method is read-only.
func IsSafe(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// Decide evaluates the rules in priority order:
//
//  1. safe methods are always allowed, including for anonymous callers;
//  2. title, category and genre mutations require the admin role;
//  3. review and comment creation requires authentication, and mutating an
//     existing one requires authorship or an elevated role;
//  4. a user editing their own account may touch profile fields but never
//     the role, and the self path applies this even to admins; any other
//     account edit requires the admin role.
func Decide(actor Actor, method string, res Resource) Decision {
	if IsSafe(method) {
		return allow()
	}
	if !actor.Authenticated() {
		return deny("authentication required to %s a %s", verb(method), res.Kind)
	}

	switch res.Kind {
	case KindTitle, KindCategory, KindGenre:
		if actor.Role == domain.RoleAdmin {
			return allow()
		}
		return deny("only admins may %s a %s", verb(method), res.Kind)

	case KindReview, KindComment:
		if res.OwnerID == "" {
			if method == http.MethodPost {
				return allow()
			}
			return deny("%s %s requires an existing object", verb(method), res.Kind)
		}
		if res.OwnerID == actor.UserID {
			return allow()
		}
		if actor.Role.Elevated() {
			return allow()
		}
		return deny("only the author, a moderator or an admin may %s this %s", verb(method), res.Kind)

	case KindUserAccount:
		own := res.OwnerID != "" && res.OwnerID == actor.UserID
		if res.Self && !own && res.OwnerID != "" {
			return deny("self-service path used for another account")
		}
		if res.Self || (own && actor.Role != domain.RoleAdmin) {
			if res.RoleChange {
				return deny("users may not change their own role")
			}
			return allow()
		}
		if actor.Role == domain.RoleAdmin {
			return allow()
		}
		return deny("only admins may %s other user accounts", verb(method))
	}

	return deny("unknown resource kind %s", res.Kind)
}

// Authorize is Decide returning an error: nil when allowed, otherwise an
// error wrapping domain.ErrForbidden (domain.ErrUnauthorized for anonymous
// callers, domain.ErrRoleChangeForbidden for self role changes).
func Authorize(actor Actor, method string, res Resource) error {
	d := Decide(actor, method, res)
	if d.Allowed {
		return nil
	}
	switch {
	case !actor.Authenticated():
		return fmt.Errorf("%s: %w", d.Reason, domain.ErrUnauthorized)
	case res.Kind == KindUserAccount && res.RoleChange && (res.Self || res.OwnerID == actor.UserID):
		return domain.ErrRoleChangeForbidden
	}
	return fmt.Errorf("%s: %w", d.Reason, domain.ErrForbidden)
}

// Enforce is Authorize with the deny reason logged.
func Enforce(ctx context.Context, actor Actor, method string, res Resource) error {
	err := Authorize(actor, method, res)
	if err != nil {
		slog.InfoContext(ctx, "access denied",
			"actor", actor.UserID, "role", actor.Role, "method", method, "kind", res.Kind.String(), "reason", err.Error())
	}
	return err
}

func verb(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	}
	return method
}
