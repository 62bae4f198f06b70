package dotdir_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/claudekit/pkg/dotdir"
	"github.com/papercomputeco/claudekit/pkg/llm"
)

var _ = Describe("Session", func() {
	var (
		tmpDir string
		m      *dotdir.Manager
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		m = dotdir.NewManager()
	})

	It("returns nil when nothing was saved", func() {
		s, err := m.LoadSession(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(s).To(BeNil())
	})

	It("round-trips a session", func() {
		saved := &dotdir.Session{
			Model:  "claude-haiku-4-5-20251001",
			System: "Be brief.",
			Messages: []llm.Message{
				llm.NewUserMessage("What is Go?"),
				llm.NewAssistantMessage("A programming language."),
			},
			Usage:     llm.Usage{InputTokens: 20, OutputTokens: 6},
			UpdatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		}
		Expect(m.SaveSession(saved, tmpDir)).To(Succeed())

		loaded, err := m.LoadSession(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded).To(Equal(saved))
	})

	It("overwrites the previous session", func() {
		Expect(m.SaveSession(&dotdir.Session{Model: "first"}, tmpDir)).To(Succeed())
		Expect(m.SaveSession(&dotdir.Session{Model: "second"}, tmpDir)).To(Succeed())

		loaded, err := m.LoadSession(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded.Model).To(Equal("second"))
	})

	It("rejects a nil session", func() {
		Expect(m.SaveSession(nil, tmpDir)).NotTo(Succeed())
	})

	It("fails on a corrupt file", func() {
		Expect(os.WriteFile(filepath.Join(tmpDir, "session.json"), []byte("not json"), 0o600)).To(Succeed())

		_, err := m.LoadSession(tmpDir)
		Expect(err).To(MatchError(ContainSubstring("parsing session")))
	})

	It("clears the session", func() {
		Expect(m.SaveSession(&dotdir.Session{Model: "m"}, tmpDir)).To(Succeed())
		Expect(m.ClearSession(tmpDir)).To(Succeed())
		Expect(m.ClearSession(tmpDir)).To(Succeed())

		loaded, err := m.LoadSession(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded).To(BeNil())
	})
})
