package start_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/localcompute/g4l/pkg/config"
	"github.com/localcompute/g4l/pkg/index"
	"github.com/localcompute/g4l/pkg/start"
)

var _ = Describe("Stack", func() {
	var (
		ctx       context.Context
		configDir string
		cfg       *config.Config
	)

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		configDir, err = os.MkdirTemp("", "g4l-stack-*")
		Expect(err).NotTo(HaveOccurred())

		cfg = config.NewDefaultConfig()
	})

	AfterEach(func() {
		Expect(os.RemoveAll(configDir)).To(Succeed())
	})

	Describe("Open", func() {
		It("builds an engine without an index when retrieval is off", func() {
			s, err := start.Open(ctx, cfg, start.Options{ConfigDir: configDir, Logger: zap.NewNop()})
			Expect(err).NotTo(HaveOccurred())
			defer s.Close()

			Expect(s.Engine).NotTo(BeNil())
			Expect(s.Engine.Augmented()).To(BeFalse())
			Expect(s.Backend.Name()).To(Equal("ollama"))
			Expect(s.Index).To(BeNil())
			Expect(s.Retriever).To(BeNil())
		})

		It("rejects an unknown backend", func() {
			cfg.Engine.Backend = "gpt4all"
			_, err := start.Open(ctx, cfg, start.Options{ConfigDir: configDir})
			Expect(err).To(MatchError(ContainSubstring("unsupported backend")))
		})

		It("rejects an unknown events provider", func() {
			cfg.Events.Provider = "pulsar"
			_, err := start.Open(ctx, cfg, start.Options{ConfigDir: configDir})
			Expect(err).To(MatchError(ContainSubstring("unsupported events provider")))
		})

		It("fails when the documents directory is missing", func() {
			cfg.Retrieval.Enabled = true
			cfg.Retrieval.DocumentsDir = filepath.Join(configDir, "nope")
			_, err := start.Open(ctx, cfg, start.Options{ConfigDir: configDir})
			Expect(err).To(MatchError(ContainSubstring("reading documents")))
		})
	})

	Describe("ResolveModelsDir", func() {
		It("leaves ollama alone", func() {
			cfg.Engine.ModelsDir = "models"
			dir, err := start.ResolveModelsDir(cfg, configDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(dir).To(Equal("models"))
		})

		It("places relative llamacpp model dirs in the config dir", func() {
			cfg, err := config.PresetConfig("llamacpp")
			Expect(err).NotTo(HaveOccurred())

			dir, err := start.ResolveModelsDir(cfg, configDir)
			Expect(err).NotTo(HaveOccurred())
			abs, _ := filepath.Abs(configDir)
			Expect(dir).To(Equal(filepath.Join(abs, "models")))
		})

		It("keeps absolute llamacpp model dirs", func() {
			cfg.Engine.Backend = "llamacpp"
			cfg.Engine.ModelsDir = "/opt/models"
			dir, err := start.ResolveModelsDir(cfg, configDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(dir).To(Equal("/opt/models"))
		})
	})

	Describe("OpenIndex", func() {
		var docsDir string

		BeforeEach(func() {
			docsDir = filepath.Join(configDir, "files")
			Expect(os.MkdirAll(docsDir, 0o755)).To(Succeed())
			Expect(os.WriteFile(filepath.Join(docsDir, "b.txt"), []byte("beta"), 0o600)).To(Succeed())
			Expect(os.WriteFile(filepath.Join(docsDir, "a.txt"), []byte("alpha"), 0o600)).To(Succeed())

			cfg.Retrieval.DocumentsDir = docsDir
		})

		It("derives the storage id from the documents and embed model", func() {
			ix, err := start.OpenIndex(ctx, cfg, start.IndexOptions{ConfigDir: configDir})
			Expect(err).NotTo(HaveOccurred())
			defer ix.Close()

			Expect(ix.Files).To(Equal([]string{"a.txt", "b.txt"}))
			Expect(ix.ID).To(Equal(index.StorageID([]string{"a.txt", "b.txt"}, "nomic-embed-text")))
			Expect(ix.Exists()).To(BeFalse())
			Expect(ix.State.Dir).To(HaveSuffix(index.StorageName(ix.ID)))
		})

		It("does not count an empty database as built", func() {
			ix, err := start.OpenIndex(ctx, cfg, start.IndexOptions{ConfigDir: configDir})
			Expect(err).NotTo(HaveOccurred())
			Expect(ix.Close()).To(Succeed())

			ix, err = start.OpenIndex(ctx, cfg, start.IndexOptions{ConfigDir: configDir})
			Expect(err).NotTo(HaveOccurred())
			defer ix.Close()
			Expect(ix.Exists()).To(BeFalse())
		})

		It("rejects an unknown retrieval mode", func() {
			cfg.Retrieval.Mode = "reckless"
			ix, err := start.OpenIndex(ctx, cfg, start.IndexOptions{ConfigDir: configDir})
			Expect(err).NotTo(HaveOccurred())
			defer ix.Close()

			_, err = ix.Retriever()
			Expect(err).To(MatchError(ContainSubstring("unknown retrieval mode")))
		})
	})
})
