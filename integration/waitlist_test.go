package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/akeren/snipit-waitlist/config"
	"github.com/akeren/snipit-waitlist/config/router"
	"github.com/akeren/snipit-waitlist/domain"
	"github.com/akeren/snipit-waitlist/internal/log"
	"github.com/akeren/snipit-waitlist/internal/models"
	"github.com/akeren/snipit-waitlist/internal/store"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testAdminAPIKey = "test-admin-key"

type WaitlistAPITestSuite struct {
	suite.Suite
	db         *gorm.DB
	dataDir    string
	server     *httptest.Server
	baseURL    string
	logger     *log.Logger
	appConfig  *config.ApplicationConfig
	replicator *store.Replicator
}

func (suite *WaitlistAPITestSuite) SetupSuite() {
	var err error
	suite.db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	suite.Require().NoError(err)

	err = suite.db.AutoMigrate(&models.WaitlistEntry{})
	suite.Require().NoError(err)

	suite.logger = log.NewLoggerWithJSONOutput()
	suite.dataDir = suite.T().TempDir()

	fileBackend := store.NewFileBackend(suite.dataDir, suite.logger)
	chain := store.NewFallbackChain([]store.Backend{
		fileBackend,
		store.NewMemoryBackend(),
	}, store.PolicyStrict, suite.logger)

	suite.replicator = store.NewReplicator(store.NewRemoteBackend(suite.db), suite.dataDir, &store.ReplicatorConfig{
		QueueSize: 16,
		Workers:   1,
	}, suite.logger)
	suite.replicator.Start()
	chain.AttachReplicator(suite.replicator)

	suite.appConfig = &config.ApplicationConfig{
		DB:            suite.db,
		Logger:        suite.logger,
		Waitlist:      &config.WaitlistConfig{AdminAPIKey: testAdminAPIKey},
		WaitlistStore: chain,
		Canonical:     fileBackend,
		Replicator:    suite.replicator,
	}

	suite.appConfig.RouterService = router.CreateRouterService(suite.logger, nil, &router.RouterConfig{
		RateLimitRequests: 100,
		RateLimitWindow:   time.Minute,
		RequestTimeout:    30 * time.Second,
	})

	domain.SetupCoreDomain(suite.appConfig)

	suite.server = httptest.NewServer(suite.appConfig.RouterService.GetEngine())
	suite.baseURL = suite.server.URL
}

func (suite *WaitlistAPITestSuite) TearDownSuite() {
	if suite.server != nil {
		suite.server.Close()
	}
	if suite.replicator != nil {
		suite.replicator.Close()
	}
	if suite.db != nil {
		sqlDB, _ := suite.db.DB()
		sqlDB.Close()
	}
}

func (suite *WaitlistAPITestSuite) SetupTest() {
	suite.db.Exec("DELETE FROM waitlist_entries")
	os.Remove(filepath.Join(suite.dataDir, "waitlist.json"))
}

func (suite *WaitlistAPITestSuite) postJSON(path string, body map[string]interface{}) (*http.Response, map[string]interface{}) {
	jsonBody, err := json.Marshal(body)
	suite.Require().NoError(err)

	resp, err := http.Post(suite.baseURL+path, "application/json", bytes.NewBuffer(jsonBody))
	suite.Require().NoError(err)

	var decoded map[string]interface{}
	err = json.NewDecoder(resp.Body).Decode(&decoded)
	resp.Body.Close()
	suite.Require().NoError(err)

	return resp, decoded
}

func (suite *WaitlistAPITestSuite) getJSON(path string, headers map[string]string) (*http.Response, map[string]interface{}) {
	req, err := http.NewRequest(http.MethodGet, suite.baseURL+path, nil)
	suite.Require().NoError(err)

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := http.DefaultClient.Do(req)
	suite.Require().NoError(err)

	var decoded map[string]interface{}
	err = json.NewDecoder(resp.Body).Decode(&decoded)
	resp.Body.Close()
	suite.Require().NoError(err)

	return resp, decoded
}

func (suite *WaitlistAPITestSuite) TestLiveness() {
	resp, response := suite.getJSON("/api/healthz", nil)

	suite.Equal(http.StatusOK, resp.StatusCode)
	suite.Equal(true, response["success"])
	suite.Contains(response["message"], "alive")
}

func (suite *WaitlistAPITestSuite) TestHealthCheck() {
	resp, response := suite.getJSON("/api/health", nil)

	suite.Equal(http.StatusOK, resp.StatusCode)
	suite.Equal(true, response["success"])
	suite.Contains(response["message"], "health check completed")

	detail := response["detail"].(map[string]interface{})
	suite.Equal(float64(1), detail["database"])
	suite.Equal(float64(1), detail["storage"])
	suite.Equal(float64(1), detail["replication"])
	suite.Contains(detail, "uptime")
	suite.Contains(detail, "replication_stats")
}

func (suite *WaitlistAPITestSuite) TestJoinWaitlist() {
	resp, response := suite.postJSON("/api/waitlist", map[string]interface{}{
		"email": "john.doe@example.com",
	})

	suite.Equal(http.StatusOK, resp.StatusCode)
	suite.Equal(true, response["success"])
	suite.Contains(response["message"], "added to the waitlist")

	detail := response["detail"].(map[string]interface{})
	suite.Equal("john.doe@example.com", detail["email"])
	suite.Equal("file", detail["backend"])

	// The signup lands in the canonical document synchronously and reaches
	// the replication target shortly after.
	data, err := os.ReadFile(filepath.Join(suite.dataDir, "waitlist.json"))
	suite.Require().NoError(err)
	suite.Contains(string(data), "john.doe@example.com")

	suite.Require().Eventually(func() bool {
		var count int64
		suite.db.Model(&models.WaitlistEntry{}).Where("email = ?", "john.doe@example.com").Count(&count)
		return count == 1
	}, 2*time.Second, 20*time.Millisecond)
}

func (suite *WaitlistAPITestSuite) TestJoinWaitlistNormalizesEmail() {
	resp, response := suite.postJSON("/api/waitlist", map[string]interface{}{
		"email": "  Mixed.Case@Example.COM ",
	})

	suite.Equal(http.StatusOK, resp.StatusCode)

	detail := response["detail"].(map[string]interface{})
	suite.Equal("mixed.case@example.com", detail["email"])
}

func (suite *WaitlistAPITestSuite) TestJoinWaitlistDuplicate() {
	resp, _ := suite.postJSON("/api/waitlist", map[string]interface{}{
		"email": "duplicate@example.com",
	})
	suite.Equal(http.StatusOK, resp.StatusCode)

	resp, response := suite.postJSON("/api/waitlist", map[string]interface{}{
		"email": "duplicate@example.com",
	})

	suite.Equal(http.StatusBadRequest, resp.StatusCode)
	suite.Equal(false, response["success"])
	suite.Equal("Email already registered", response["message"])
}

func (suite *WaitlistAPITestSuite) TestJoinWaitlistInvalidEmail() {
	resp, response := suite.postJSON("/api/waitlist", map[string]interface{}{
		"email": "not-an-email",
	})

	suite.Equal(http.StatusBadRequest, resp.StatusCode)
	suite.Equal(false, response["success"])
	suite.Contains(response["message"], "valid email")
}

func (suite *WaitlistAPITestSuite) TestJoinWaitlistMissingEmail() {
	resp, response := suite.postJSON("/api/waitlist", map[string]interface{}{})

	suite.Equal(http.StatusBadRequest, resp.StatusCode)
	suite.Equal(false, response["success"])
	suite.Contains(response["message"], "Invalid request payload")
}

func (suite *WaitlistAPITestSuite) TestLegacyJoinRoute() {
	resp, response := suite.postJSON("/api/join-waitlist", map[string]interface{}{
		"email": "legacy@example.com",
	})

	suite.Equal(http.StatusOK, resp.StatusCode)
	suite.Equal(true, response["success"])

	suite.Require().Eventually(func() bool {
		var stored models.WaitlistEntry
		err := suite.db.Where("email = ?", "legacy@example.com").First(&stored).Error
		return err == nil && stored.Source == models.WaitlistSourceLegacyAPI
	}, 2*time.Second, 20*time.Millisecond)
}

func (suite *WaitlistAPITestSuite) TestAdminSnapshotRequiresAuth() {
	resp, response := suite.getJSON("/api/waitlist", nil)

	suite.Equal(http.StatusUnauthorized, resp.StatusCode)
	suite.Equal(false, response["success"])
	suite.Equal("Unauthorized", response["message"])
}

func (suite *WaitlistAPITestSuite) TestAdminSnapshotRejectsWrongKey() {
	resp, _ := suite.getJSON("/api/waitlist", map[string]string{
		"Authorization": "Bearer wrong-key",
	})

	suite.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (suite *WaitlistAPITestSuite) TestAdminSnapshotWithBearerToken() {
	for _, email := range []string{"admin.one@example.com", "admin.two@example.com"} {
		resp, _ := suite.postJSON("/api/waitlist", map[string]interface{}{"email": email})
		suite.Require().Equal(http.StatusOK, resp.StatusCode)
	}

	resp, response := suite.getJSON("/api/waitlist", map[string]string{
		"Authorization": "Bearer " + testAdminAPIKey,
	})

	suite.Equal(http.StatusOK, resp.StatusCode)
	suite.Equal(true, response["success"])
	suite.Contains(response["message"], "retrieved successfully")
	suite.Equal(float64(2), response["count"])
	suite.NotEmpty(response["lastUpdated"])

	emails := response["emails"].([]interface{})
	suite.Len(emails, 2)
	suite.Contains(emails, "admin.one@example.com")
	suite.Contains(emails, "admin.two@example.com")
}

func (suite *WaitlistAPITestSuite) TestAdminSnapshotWithHeaderFlag() {
	resp, response := suite.getJSON("/api/waitlist", map[string]string{
		"X-Admin-Access": "true",
	})

	suite.Equal(http.StatusOK, resp.StatusCode)
	suite.Equal(true, response["success"])
	suite.Equal(float64(0), response["count"])
}

func (suite *WaitlistAPITestSuite) TestUnknownRoute() {
	resp, response := suite.getJSON("/api/nope", nil)

	suite.Equal(http.StatusNotFound, resp.StatusCode)
	suite.Equal(false, response["success"])
}

func TestWaitlistAPISuite(t *testing.T) {
	// Skip integration tests unless explicitly requested
	if os.Getenv("RUN_INTEGRATION_TESTS") != "true" {
		t.Skip("Skipping integration tests. Set RUN_INTEGRATION_TESTS=true to run them")
	}

	suite.Run(t, new(WaitlistAPITestSuite))
}
