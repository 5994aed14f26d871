package mediacore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// FolderClaim is the parsed form of a client-supplied folder path. Parsing is
// tolerant: a path that does not match a known namespace comes back with
// Resolved=false and is judged by the fallback rule, never by guessing.
type FolderClaim struct {
	Raw       string
	OwnerType OwnerType
	OwnerID   uuid.UUID
	Resolved  bool
}

// Guard decides whether a principal may write into a folder or touch an
// existing file record. Every path not explicitly granted is denied.
type Guard struct {
	listings ListingDirectory
	chat     ChatAuthorizer
	logger   *slog.Logger
}

// NewGuard builds an authorization guard. listings and chat may be nil, in
// which case writes into their namespaces are denied outright.
func NewGuard(listings ListingDirectory, chat ChatAuthorizer, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{listings: listings, chat: chat, logger: logger}
}

// ParseFolder extracts the owner namespace from a folder path such as
// "cars/123e4567-.../images". Extra path segments after the identifier are
// ignored for ownership purposes.
func ParseFolder(folder string) FolderClaim {
	claim := FolderClaim{Raw: folder}
	parts := strings.Split(strings.Trim(folder, "/"), "/")
	if len(parts) < 2 {
		return claim
	}
	id, err := uuid.Parse(parts[1])
	if err != nil {
		return claim
	}
	switch parts[0] {
	case "users":
		claim.OwnerType = OwnerTypeUserProfile
	case "cars":
		claim.OwnerType = OwnerTypeCarImage
	case "chat":
		claim.OwnerType = OwnerTypeChatAttachment
	default:
		return claim
	}
	claim.OwnerID = id
	claim.Resolved = true
	return claim
}

// CheckWrite decides whether principal may upload into folder. A denial is
// always ErrAccessDenied; lookup failures of the collaborators surface as
// their own errors so infrastructure trouble is not mistaken for a denial.
func (g *Guard) CheckWrite(ctx context.Context, principal Principal, folder string) error {
	claim := ParseFolder(folder)
	if !claim.Resolved {
		return g.checkUnresolvedWrite(principal, folder)
	}

	switch claim.OwnerType {
	case OwnerTypeUserProfile:
		if principal.IsAdmin() || principal.ID == claim.OwnerID {
			return nil
		}
		return ErrAccessDenied

	case OwnerTypeCarImage:
		if principal.IsAdmin() {
			return nil
		}
		if g.listings == nil {
			return ErrAccessDenied
		}
		ownerID, err := g.listings.FindOwnerOf(ctx, claim.OwnerID)
		if err != nil {
			if errors.Is(err, ErrListingNotFound) {
				return ErrAccessDenied
			}
			return fmt.Errorf("resolving listing owner: %w", err)
		}
		if ownerID == principal.ID {
			return nil
		}
		return ErrAccessDenied

	case OwnerTypeChatAttachment:
		if g.chat == nil {
			return ErrAccessDenied
		}
		ok, err := g.chat.MayPostInRoom(ctx, principal.ID, claim.OwnerID)
		if err != nil {
			return fmt.Errorf("checking chat membership: %w", err)
		}
		if ok {
			return nil
		}
		return ErrAccessDenied
	}

	return ErrAccessDenied
}

// checkUnresolvedWrite handles folders outside the known namespaces. A user
// may write only under their own id segment; admins may write anywhere.
func (g *Guard) checkUnresolvedWrite(principal Principal, folder string) error {
	if principal.IsAdmin() {
		return nil
	}
	parts := strings.Split(strings.Trim(folder, "/"), "/")
	for _, p := range parts {
		if p == principal.ID.String() {
			return nil
		}
	}
	g.logger.Debug("denied write to unrecognized folder",
		"principal", principal.ID, "folder", sanitizeForLog(folder))
	return ErrAccessDenied
}

// CheckRead decides whether principal may read or delete the file record.
// The decision is based solely on the persisted (OwnerType, OwnerID), never
// on the folder string the client once supplied.
func (g *Guard) CheckRead(ctx context.Context, principal Principal, file *UploadedFile) error {
	if principal.IsAdmin() {
		return nil
	}

	switch file.OwnerType {
	case OwnerTypeUserProfile:
		if principal.ID == file.OwnerID {
			return nil
		}

	case OwnerTypeCarImage:
		if g.listings == nil {
			break
		}
		ownerID, err := g.listings.FindOwnerOf(ctx, file.OwnerID)
		if err != nil {
			if errors.Is(err, ErrListingNotFound) {
				break
			}
			return fmt.Errorf("resolving listing owner: %w", err)
		}
		if ownerID == principal.ID {
			return nil
		}

	case OwnerTypeChatAttachment:
		if g.chat == nil {
			break
		}
		ok, err := g.chat.MayViewRoom(ctx, principal.ID, file.OwnerID)
		if err != nil {
			return fmt.Errorf("checking chat membership: %w", err)
		}
		if ok {
			return nil
		}

	case OwnerTypeOther:
		if file.UploadedBy == principal.ID {
			return nil
		}
	}

	return ErrAccessDenied
}
