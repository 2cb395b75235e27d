// SPDX-License-Identifier: MPL-2.0

package config

import (
	"fmt"
	"os/user"
	"strconv"
)

// HostIdentity is the invoking user, mapped into containers so files written
// to bind mounts and volumes stay owned by them.
type HostIdentity struct {
	User  string
	UID   string
	Group string
	GID   string
}

// Owner returns "uid:gid" for --user and chown, or "" when the UID is unknown.
func (h HostIdentity) Owner() string {
	if h.UID == "" {
		return ""
	}
	if h.GID == "" {
		return h.UID
	}
	return h.UID + ":" + h.GID
}

// BuildArgs returns the derived image build arguments that create the user.
func (h HostIdentity) BuildArgs() map[string]string {
	return map[string]string{
		"USER":  h.User,
		"UID":   h.UID,
		"GROUP": h.Group,
		"GID":   h.GID,
	}
}

// lookupHostIdentity takes USER, UID, GROUP and GID from env, falling back to
// the current OS user for whichever are unset. Shells commonly do not export
// UID, so the fallback is the usual path for it.
func lookupHostIdentity(env map[string]string) (HostIdentity, error) {
	h := HostIdentity{
		User:  env["USER"],
		UID:   env["UID"],
		Group: env["GROUP"],
		GID:   env["GID"],
	}
	if h.User == "" || h.UID == "" || h.Group == "" || h.GID == "" {
		if err := h.fillFromOS(); err != nil {
			return HostIdentity{}, err
		}
	}

	if _, err := strconv.Atoi(h.UID); err != nil {
		return HostIdentity{}, fmt.Errorf("UID %q is not numeric", h.UID)
	}
	if _, err := strconv.Atoi(h.GID); err != nil {
		return HostIdentity{}, fmt.Errorf("GID %q is not numeric", h.GID)
	}
	return h, nil
}

func (h *HostIdentity) fillFromOS() error {
	u, err := user.Current()
	if err != nil {
		return fmt.Errorf("look up current user: %w", err)
	}
	if h.User == "" {
		h.User = u.Username
	}
	if h.UID == "" {
		h.UID = u.Uid
	}
	if h.GID == "" {
		h.GID = u.Gid
	}
	if h.Group == "" {
		if g, err := user.LookupGroupId(h.GID); err == nil {
			h.Group = g.Name
		} else {
			h.Group = h.User
		}
	}
	return nil
}
