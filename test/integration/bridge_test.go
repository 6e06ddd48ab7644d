//go:build integration

package integration

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/shield/internal/bridge"
	"github.com/eliteGoblin/shield/internal/catalog"
	"github.com/eliteGoblin/shield/internal/daemon"
	"github.com/eliteGoblin/shield/internal/domain"
	"github.com/eliteGoblin/shield/internal/infra"
	"github.com/eliteGoblin/shield/internal/usecase"
	"github.com/eliteGoblin/shield/test/fixtures"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var _ = Describe("Bridge", func() {
	var (
		tmpDir    string
		scripts   *fixtures.ScriptDir
		registry  domain.InstanceRegistry
		stateFile string
		hardening *catalog.ModuleFeature
		cancel    context.CancelFunc
		done      chan error
		instance  *domain.BridgeInstance
	)

	call := func(method, path string, body interface{}) (*http.Response, []byte) {
		var r io.Reader
		if body != nil {
			data, err := json.Marshal(body)
			Expect(err).NotTo(HaveOccurred())
			r = bytes.NewReader(data)
		}
		req, err := http.NewRequest(method, "http://"+instance.Addr+path, r)
		Expect(err).NotTo(HaveOccurred())
		req.Header.Set("Authorization", "Bearer "+instance.Token)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		return resp, data
	}

	status := func() bridge.SystemStatus {
		resp, data := call(http.MethodGet, "/v1/system/status", nil)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		var st bridge.SystemStatus
		Expect(json.Unmarshal(data, &st)).To(Succeed())
		return st
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "shield-integration-*")
		Expect(err).NotTo(HaveOccurred())

		scripts, err = fixtures.NewScriptDir(filepath.Join(tmpDir, "scripts"))
		Expect(err).NotTo(HaveOccurred())

		hardening = catalog.NewHardeningFeature()
		for _, m := range hardening.Modules() {
			Expect(scripts.WriteToggle(m.Script, true)).To(Succeed())
		}
		Expect(scripts.WriteJSON("firewall-status", `{"Domain":true,"Private":true,"Public":false}`)).To(Succeed())
		Expect(scripts.WriteEcho("network-manager")).To(Succeed())

		logger := zap.NewNop()
		pm := infra.NewProcessManager()
		invoker := infra.NewScriptInvoker(scripts.Root, fixtures.ShellInterpreter(),
			infra.NewCommandRunner(), infra.StaticProber(true), logger)

		stateFile = filepath.Join(tmpDir, "state-cache.json")
		cache := infra.NewStateCache(infra.NewFileStateStore(stateFile), 10*time.Millisecond, logger)

		key, err := infra.GenerateKey()
		Expect(err).NotTo(HaveOccurred())
		store, err := infra.NewEncryptedProfileStore(filepath.Join(tmpDir, "profiles.db"), key)
		Expect(err).NotTo(HaveOccurred())

		reg := catalog.NewRegistry()
		hub := bridge.NewHub(logger)
		modules := map[string]*usecase.ModuleService{
			catalog.HardeningFeatureID: usecase.NewModuleService(hardening, invoker, cache, hub, logger),
		}

		auth, err := bridge.NewSessionAuthenticator()
		Expect(err).NotTo(HaveOccurred())

		registry = infra.NewFileRegistryWithPath(filepath.Join(tmpDir, "bridge.json"), pm)
		cfg := daemon.DefaultHostConfig()
		cfg.ListenAddr = "127.0.0.1:0"
		cfg.Version = "test"
		host := daemon.NewHost(cfg, registry, pm, auth, logger).
			WithRefresher(catalog.HardeningFeatureID, modules[catalog.HardeningFeatureID]).
			WithClosers(cache, store)

		api := bridge.NewAPI(bridge.Deps{
			Prober:   infra.StaticProber(true),
			Scripts:  invoker,
			Cache:    cache,
			Catalog:  reg,
			Modules:  modules,
			Actions:  usecase.NewActionService(reg, invoker, logger),
			Profiles: usecase.NewProfileService(modules[catalog.HardeningFeatureID], store, logger),
			Notifier: hub,
			Shutdown: host.RequestShutdown,
			Build:    bridge.BuildInfo{Version: "test"},
		}, logger)

		var ctx context.Context
		ctx, cancel = context.WithCancel(context.Background())
		done = make(chan error, 1)
		server := bridge.NewServer(api, hub, auth, logger)
		go func() { done <- host.Run(ctx, server) }()

		Eventually(func() *domain.BridgeInstance {
			instance, _ = registry.Get()
			return instance
		}, 5*time.Second, 20*time.Millisecond).ShouldNot(BeNil())

		// Let the startup refresh settle so it cannot race the specs.
		Eventually(func() int {
			fresh := 0
			for _, s := range modules[catalog.HardeningFeatureID].List() {
				if s.Phase == domain.PhaseFresh {
					fresh++
				}
			}
			return fresh
		}, 10*time.Second, 50*time.Millisecond).Should(Equal(len(hardening.IDs())))
	})

	AfterEach(func() {
		cancel()
		Eventually(done, 5*time.Second).Should(Receive())
		os.RemoveAll(tmpDir)
	})

	Describe("authentication", func() {
		It("should reject requests without the session token", func() {
			resp, err := http.Get("http://" + instance.Addr + "/v1/system/status")
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		})

		It("should serve the version without a token", func() {
			resp, err := http.Get("http://" + instance.Addr + "/v1/version")
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})

	Describe("initial refresh", func() {
		It("should report every at-risk module", func() {
			st := status()
			Expect(st.Posture).To(Equal(bridge.PostureAtRisk))
			Expect(st.HardeningLevel).To(Equal(0))
			Expect(st.LastScan).NotTo(BeNil())

			resp, data := call(http.MethodGet, "/v1/features/hardening/modules", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var states []domain.ModuleState
			Expect(json.Unmarshal(data, &states)).To(Succeed())
			Expect(states).To(HaveLen(len(hardening.IDs())))
			for _, s := range states {
				Expect(s.Phase).To(Equal(domain.PhaseFresh))
			}
		})
	})

	Describe("module toggle", func() {
		It("should run the script and confirm the new state", func() {
			id := hardening.IDs()[0]
			script := hardening.Modules()[0].Script

			resp, data := call(http.MethodPost,
				"/v1/features/hardening/modules/"+id+"/toggle", bridge.ToggleRequest{Enable: false})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var st domain.ModuleState
			Expect(json.Unmarshal(data, &st)).To(Succeed())
			Expect(st.Status).NotTo(BeNil())
			Expect(st.Status.Enabled).To(BeFalse())
			Expect(st.Status.Status).To(Equal(domain.StatusSafe))

			enabled, err := scripts.Enabled(script)
			Expect(err).NotTo(HaveOccurred())
			Expect(enabled).To(BeFalse())

			Eventually(func() string {
				data, _ := os.ReadFile(stateFile)
				return string(data)
			}, 2*time.Second, 20*time.Millisecond).Should(ContainSubstring(domain.CacheKey("hardening", id)))
		})
	})

	Describe("profiles", func() {
		It("should apply strict and detect the duplicate on save", func() {
			resp, _ := call(http.MethodPost, "/v1/profiles/"+catalog.StrictProfileID+"/apply", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			st := status()
			Expect(st.Posture).To(Equal(bridge.PostureSecure))
			Expect(st.HardeningLevel).To(Equal(100))

			resp, data := call(http.MethodPost, "/v1/profiles", bridge.SaveProfileRequest{Name: "Mine"})
			Expect(resp.StatusCode).To(Equal(http.StatusConflict))
			Expect(string(data)).To(ContainSubstring("Strict (Maximum Security)"))

			resp, data = call(http.MethodGet, "/v1/profiles", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var list bridge.ProfileList
			Expect(json.Unmarshal(data, &list)).To(Succeed())
			Expect(list.Active).To(Equal(catalog.StrictProfileID))
		})

		It("should round-trip an imported profile", func() {
			settings := map[string]bool{}
			for _, id := range hardening.IDs() {
				settings[id] = false
			}
			settings[hardening.IDs()[1]] = true

			resp, data := call(http.MethodPost, "/v1/profiles/import",
				domain.ProfileDocument{Name: "Just one", Settings: settings})
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))
			var p domain.HardeningProfile
			Expect(json.Unmarshal(data, &p)).To(Succeed())

			resp, data = call(http.MethodGet, "/v1/profiles/"+p.ID+"/export", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var doc domain.ProfileDocument
			Expect(json.Unmarshal(data, &doc)).To(Succeed())
			Expect(doc.Name).To(Equal("Just one"))
			Expect(doc.Settings).To(Equal(settings))
		})
	})

	Describe("actions", func() {
		It("should pass parameters to the script", func() {
			resp, data := call(http.MethodPost, "/v1/features/network/actions/SetDNS",
				bridge.ActionRequest{Params: map[string]string{"AdapterIndex": "7", "DNS1": "1.1.1.1"}})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("X-Shield-Result")).To(Equal(string(domain.ResultStructured)))
			Expect(string(data)).To(ContainSubstring(`"-Action","SetDNS"`))
			Expect(string(data)).To(ContainSubstring(`"-AdapterIndex","7"`))
		})

		It("should reject a missing required parameter", func() {
			resp, _ := call(http.MethodPost, "/v1/features/network/actions/SetDNS", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("system", func() {
		It("should return the firewall report as-is", func() {
			resp, data := call(http.MethodGet, "/v1/system/firewall", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(data).To(MatchJSON(`{"Domain":true,"Private":true,"Public":false}`))
		})
	})

	Describe("shutdown", func() {
		It("should stop on window close and clear the registration", func() {
			resp, _ := call(http.MethodPost, "/v1/window/close", nil)
			Expect(resp.StatusCode).To(BeNumerically("<", 300))

			Eventually(done, 5*time.Second).Should(Receive(BeNil()))
			done <- nil

			got, err := registry.Get()
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(BeNil())
		})
	})
})
