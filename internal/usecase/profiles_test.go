package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/eliteGoblin/shield/internal/catalog"
	"github.com/eliteGoblin/shield/internal/domain"
)

type profileFixture struct {
	inv     *fakeInvoker
	modules *ModuleService
	store   *memProfileStore
	svc     *ProfileService
}

func newProfileFixture(t *testing.T) *profileFixture {
	t.Helper()
	inv := newFakeInvoker()
	modules := NewModuleService(catalog.NewHardeningFeature(), inv, newMemCache(), nil, zap.NewNop())
	store := newMemProfileStore()
	svc := NewProfileService(modules, store, zap.NewNop())
	n := 0
	svc.newID = func() string {
		n++
		return "user-" + string(rune('0'+n))
	}
	return &profileFixture{inv: inv, modules: modules, store: store, svc: svc}
}

// setAll makes every hardening script report enabled (at risk) or not.
func (f *profileFixture) setAll(t *testing.T, enabled bool) {
	t.Helper()
	for _, m := range f.modules.Feature().Modules() {
		f.inv.set(m.Script, enabled)
	}
	require.NoError(t, f.modules.RefreshAll(context.Background()))
}

func TestProfileService_ListIncludesSystem(t *testing.T) {
	f := newProfileFixture(t)

	profiles, err := f.svc.List()
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, "standard", profiles[0].ID)
	assert.Equal(t, "strict", profiles[1].ID)
}

func TestProfileService_Equal(t *testing.T) {
	f := newProfileFixture(t)

	assert.True(t, f.svc.Equal(map[string]bool{"smb1": true}, map[string]bool{"smb1": true, "rdp": false}),
		"missing keys count as false")
	assert.False(t, f.svc.Equal(map[string]bool{"smb1": true}, map[string]bool{}))
	assert.True(t, f.svc.Equal(nil, map[string]bool{"not-a-module": true}),
		"keys outside the catalog are ignored")
}

func TestProfileService_Capture(t *testing.T) {
	f := newProfileFixture(t)
	assert.Empty(t, f.svc.Capture(), "no known status yet")

	f.inv.set("disable-rdp", true)
	_, err := f.modules.Refresh(context.Background(), "rdp")
	require.NoError(t, err)
	_, err = f.modules.Refresh(context.Background(), "smb1")
	require.NoError(t, err)

	assert.Equal(t, map[string]bool{"rdp": false, "smb1": true}, f.svc.Capture())
}

func TestProfileService_Save(t *testing.T) {
	f := newProfileFixture(t)
	f.setAll(t, true)

	p, err := f.svc.Save("  Open  ")
	require.NoError(t, err)
	assert.Equal(t, "user-1", p.ID)
	assert.Equal(t, "Open", p.Name)
	assert.Len(t, p.Settings, 21)
	assert.False(t, p.Settings["telemetry"])

	active, _ := f.svc.Active()
	assert.Equal(t, "user-1", active)

	profiles, _ := f.svc.List()
	assert.Len(t, profiles, 3)
}

func TestProfileService_Save_DuplicateOfSystem(t *testing.T) {
	f := newProfileFixture(t)
	f.setAll(t, false) // everything hardened == strict

	_, err := f.svc.Save("Mine")
	var dup *domain.DuplicateProfileError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "Strict (Maximum Security)", dup.DuplicateOf)
	assert.Empty(t, f.store.order)
}

func TestProfileService_Save_RequiresName(t *testing.T) {
	f := newProfileFixture(t)
	_, err := f.svc.Save("   ")
	assert.ErrorIs(t, err, domain.ErrInvalidProfile)
}

func TestProfileService_Apply(t *testing.T) {
	f := newProfileFixture(t)
	f.setAll(t, true) // everything at risk

	res, err := f.svc.Apply(context.Background(), catalog.StandardProfileID)
	require.NoError(t, err)
	assert.Len(t, res.Changed, 7)
	assert.Len(t, res.Unchanged, 14)
	assert.Empty(t, res.Failed)

	smb1, _ := f.modules.Get("smb1")
	assert.False(t, smb1.Status.Enabled)
	rdp, _ := f.modules.Get("rdp")
	assert.True(t, rdp.Status.Enabled)

	for _, inv := range f.inv.executed() {
		assert.True(t, inv.RequiresElevation)
		assert.Equal(t, []string{"-Action", "Disable"}, inv.Args)
	}

	active, _ := f.svc.Active()
	assert.Equal(t, catalog.StandardProfileID, active)
}

func TestProfileService_Apply_UnknownStatusIsToggled(t *testing.T) {
	f := newProfileFixture(t)

	res, err := f.svc.Apply(context.Background(), catalog.StrictProfileID)
	require.NoError(t, err)
	assert.Len(t, res.Changed, 21)
}

func TestProfileService_Apply_ContinuesPastFailures(t *testing.T) {
	f := newProfileFixture(t)
	f.setAll(t, true)
	f.inv.execErr["disable-smb1"] = &domain.InvocationError{Script: "disable-smb1", ExitCode: 1}

	res, err := f.svc.Apply(context.Background(), catalog.StrictProfileID)
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 1)
	assert.Equal(t, []string{"smb1"}, res.Failed)
	assert.Len(t, res.Changed, 20)
}

func TestProfileService_Apply_NotFound(t *testing.T) {
	f := newProfileFixture(t)
	_, err := f.svc.Apply(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrProfileNotFound)
}

func TestProfileService_ImportExport(t *testing.T) {
	f := newProfileFixture(t)

	doc, err := ParseDocument([]byte(`{"name":"Travel","settings":{"wifi-sense":true,"location":true}}`))
	require.NoError(t, err)

	p, err := f.svc.Import(doc)
	require.NoError(t, err)
	assert.Equal(t, "Travel", p.Name)

	out, err := f.svc.Export(p.ID)
	require.NoError(t, err)
	assert.Equal(t, doc, out)

	std, err := f.svc.Export(catalog.StandardProfileID)
	require.NoError(t, err)
	assert.Equal(t, "Standard (Default)", std.Name)
}

func TestProfileService_Import_Validation(t *testing.T) {
	f := newProfileFixture(t)

	_, err := f.svc.Import(domain.ProfileDocument{Settings: map[string]bool{}})
	assert.ErrorIs(t, err, domain.ErrInvalidProfile)

	_, err = f.svc.Import(domain.ProfileDocument{Name: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidProfile)

	_, err = ParseDocument([]byte(`{`))
	assert.ErrorIs(t, err, domain.ErrInvalidProfile)
}

func TestProfileService_Delete(t *testing.T) {
	f := newProfileFixture(t)

	assert.ErrorIs(t, f.svc.Delete(catalog.StrictProfileID), domain.ErrSystemProfile)
	assert.ErrorIs(t, f.svc.Delete("nope"), domain.ErrProfileNotFound)

	p, err := f.svc.Import(domain.ProfileDocument{Name: "x", Settings: map[string]bool{}})
	require.NoError(t, err)
	require.NoError(t, f.svc.Delete(p.ID))
	_, err = f.svc.Get(p.ID)
	assert.ErrorIs(t, err, domain.ErrProfileNotFound)
}

func TestProfileService_SystemProfilesAreImmutable(t *testing.T) {
	f := newProfileFixture(t)

	p, err := f.svc.Get(catalog.StrictProfileID)
	require.NoError(t, err)
	p.Settings["smb1"] = false

	again, _ := f.svc.Get(catalog.StrictProfileID)
	assert.True(t, again.Settings["smb1"])
}
