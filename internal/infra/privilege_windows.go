//go:build windows

package infra

import "golang.org/x/sys/windows"

// isElevated prefers the token elevation flag and falls back to
// Administrators group membership.
func isElevated() bool {
	var token windows.Token
	if err := windows.OpenProcessToken(windows.CurrentProcess(), windows.TOKEN_QUERY, &token); err != nil {
		return false
	}
	defer token.Close()

	if token.IsElevated() {
		return true
	}

	adminSID, err := windows.CreateWellKnownSid(windows.WinBuiltinAdministratorsSid)
	if err != nil {
		return false
	}
	// With UAC on, a filtered admin token is a member only through a deny-only
	// SID, which IsMember reports as false.
	member, err := token.IsMember(adminSID)
	return err == nil && member
}
