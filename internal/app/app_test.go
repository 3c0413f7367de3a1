package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phenrril/printshop/internal/adapters/acpstore"
	"github.com/phenrril/printshop/internal/adapters/ledger/redisledger"
	"github.com/phenrril/printshop/internal/adapters/notify"
	pg "github.com/phenrril/printshop/internal/adapters/repo/postgres"
	"github.com/phenrril/printshop/internal/config"
)

func testConfig(t *testing.T, env map[string]string) *config.Config {
	t.Helper()
	cfg, err := config.FromEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	require.NoError(t, err)
	return cfg
}

func TestNewApp_WithoutRedis(t *testing.T) {
	cfg := testConfig(t, map[string]string{"STRIPE_SECRET_KEY": "sk_live_x"})
	a, err := NewApp(cfg, nil, nil)
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &pg.LedgerRepo{}, a.Fulfillment.Ledger)
	assert.IsType(t, &acpstore.MemoryStore{}, a.ACP.Sessions)
	assert.IsType(t, &notify.InlineDispatcher{}, a.Fulfillment.Dispatcher)
	assert.NotNil(t, a.Checkout.Gateways.Live)
	assert.Nil(t, a.Checkout.Gateways.Test)
	assert.Nil(t, a.Checkout.Originals)
	assert.Nil(t, a.Fulfillment.Partner)

	rec := httptest.NewRecorder()
	a.HTTPHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewApp_WithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t, map[string]string{
		"REDIS_URL":        "redis://" + mr.Addr(),
		"PICTOREM_API_KEY": "pk",
	})
	rdb, err := OpenRedis(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, rdb)

	a, err := NewApp(cfg, nil, rdb)
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &redisledger.Ledger{}, a.Fulfillment.Ledger)
	assert.IsType(t, &acpstore.RedisStore{}, a.ACP.Sessions)
	assert.IsType(t, &notify.AsynqDispatcher{}, a.Fulfillment.Dispatcher)
	assert.NotNil(t, a.Fulfillment.Partner)
}

func TestOpenRedis_Disabled(t *testing.T) {
	rdb, err := OpenRedis(context.Background(), testConfig(t, nil))
	require.NoError(t, err)
	assert.Nil(t, rdb)
}

func TestNewNotifier(t *testing.T) {
	n := NewNotifier(testConfig(t, map[string]string{"RESEND_API_KEY": "re", "EMAIL_FROM": "shop@shop.test", "ORDER_NOTIFY_EMAIL": "ops@shop.test"}))
	assert.IsType(t, &notify.ResendSender{}, n.Sender)
	assert.Equal(t, "ops@shop.test", n.InternalTo)

	n = NewNotifier(testConfig(t, map[string]string{"RESEND_API_KEY": "re"}))
	assert.IsType(t, notify.NoopSender{}, n.Sender)
}

func TestLoadPhotos(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "photos.json")
	require.NoError(t, os.WriteFile(good, []byte(`[
		{"id": "dune_sunrise", "title": "Dune Sunrise", "collection": "deserts", "filename": "dune-sunrise.jpg", "width": 6000, "height": 4000},
		{"id": "harbor-fog", "collection": "coast", "filename": "harbor-fog.tif", "width": 4000, "height": 6000, "sortOrder": 9}
	]`), 0o600))

	photos, err := LoadPhotos(good)
	require.NoError(t, err)
	require.Len(t, photos, 2)
	assert.Equal(t, 6000, photos[0].PixelWidth)
	assert.Equal(t, "deserts", photos[0].CollectionID)
	assert.Equal(t, 1, photos[0].SortOrder)
	assert.Equal(t, 9, photos[1].SortOrder)

	dup := filepath.Join(dir, "dup.json")
	require.NoError(t, os.WriteFile(dup, []byte(`[{"id": "a", "filename": "a.jpg"}, {"id": "a", "filename": "b.jpg"}]`), 0o600))
	_, err = LoadPhotos(dup)
	assert.Error(t, err)

	_, err = LoadPhotos(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
