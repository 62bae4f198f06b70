package credentials_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/claudekit/pkg/credentials"
)

var _ = Describe("Manager", func() {
	var (
		tmpDir string
		mgr    *credentials.Manager
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()

		var err error
		mgr, err = credentials.NewManager(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		mgr.SetLookupEnv(func(string) (string, bool) { return "", false })
	})

	Describe("NewManager", func() {
		It("targets credentials.toml in the override directory", func() {
			Expect(mgr.GetTarget()).To(Equal(filepath.Join(tmpDir, "credentials.toml")))
		})
	})

	Describe("Load", func() {
		It("returns empty credentials when no file exists", func() {
			creds, err := mgr.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(creds.Anthropic.APIKey).To(BeEmpty())
		})

		It("loads existing credentials", func() {
			data := `version = 0

[anthropic]
api_key = "sk-ant-test"
`
			Expect(os.WriteFile(mgr.GetTarget(), []byte(data), 0o600)).To(Succeed())

			creds, err := mgr.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(creds.Anthropic.APIKey).To(Equal("sk-ant-test"))
		})

		It("returns error for malformed TOML", func() {
			Expect(os.WriteFile(mgr.GetTarget(), []byte("not valid [[["), 0o600)).To(Succeed())

			creds, err := mgr.Load()
			Expect(err).To(MatchError(ContainSubstring("parsing credentials")))
			Expect(creds).To(BeNil())
		})
	})

	Describe("SetKey", func() {
		It("persists the key with restricted permissions", func() {
			Expect(mgr.SetKey("  sk-ant-api03-secret\n")).To(Succeed())

			info, err := os.Stat(mgr.GetTarget())
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Mode().Perm()).To(Equal(os.FileMode(0o600)))

			key, err := mgr.GetKey()
			Expect(err).NotTo(HaveOccurred())
			Expect(key).To(Equal("sk-ant-api03-secret"))
		})

		It("rejects an empty key", func() {
			Expect(mgr.SetKey("   ")).To(MatchError("API key is empty"))
		})
	})

	Describe("RemoveKey", func() {
		It("clears the stored key", func() {
			Expect(mgr.SetKey("sk-ant-test")).To(Succeed())
			Expect(mgr.RemoveKey()).To(Succeed())

			key, err := mgr.GetKey()
			Expect(err).NotTo(HaveOccurred())
			Expect(key).To(BeEmpty())
		})
	})

	Describe("Resolve", func() {
		BeforeEach(func() {
			Expect(mgr.SetKey("sk-from-file")).To(Succeed())
		})

		It("prefers the flag value", func() {
			mgr.SetLookupEnv(func(string) (string, bool) { return "sk-from-env", true })

			key, src, err := mgr.Resolve("sk-from-flag")
			Expect(err).NotTo(HaveOccurred())
			Expect(key).To(Equal("sk-from-flag"))
			Expect(src).To(Equal(credentials.SourceFlag))
		})

		It("falls back to the environment", func() {
			mgr.SetLookupEnv(func(name string) (string, bool) {
				Expect(name).To(Equal(credentials.EnvVar))
				return "sk-from-env", true
			})

			key, src, err := mgr.Resolve("")
			Expect(err).NotTo(HaveOccurred())
			Expect(key).To(Equal("sk-from-env"))
			Expect(src).To(Equal(credentials.SourceEnv))
		})

		It("falls back to the credentials file", func() {
			key, src, err := mgr.Resolve("")
			Expect(err).NotTo(HaveOccurred())
			Expect(key).To(Equal("sk-from-file"))
			Expect(src).To(Equal(credentials.SourceFile))
		})

		It("fails when no source has a key", func() {
			Expect(mgr.RemoveKey()).To(Succeed())

			_, src, err := mgr.Resolve("")
			Expect(err).To(MatchError(credentials.ErrNoAPIKey))
			Expect(src).To(Equal(credentials.SourceNone))
		})
	})
})

var _ = DescribeTable("Mask",
	func(key, want string) {
		Expect(credentials.Mask(key)).To(Equal(want))
	},
	Entry("short keys are fully hidden", "sk-abc", "******"),
	Entry("long keys keep prefix and suffix", "sk-ant-api03-abcdefgh1234", "sk-ant-****1234"),
)
