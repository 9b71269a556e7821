//go:build integration

package integration

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/content_mon/internal/domain"
	"github.com/eliteGoblin/focusd/content_mon/internal/infra"
	"github.com/eliteGoblin/focusd/content_mon/internal/policy"
	"github.com/eliteGoblin/focusd/content_mon/internal/state"
	"github.com/eliteGoblin/focusd/content_mon/internal/usecase"
	"github.com/eliteGoblin/focusd/content_mon/test/fixtures"
)

var _ = Describe("Block enforcement engine", func() {
	var (
		ctx         context.Context
		journal     *infra.Journal
		clock       *fixtures.Clock
		classifier  *fixtures.ScoreClassifier
		neutralizer *fixtures.CountingNeutralizer
		blocks      *state.BlockRegistry
		resolver    *usecase.ForegroundResolverImpl
		sampler     *usecase.SamplerImpl
		enforcer    *usecase.EnforcerImpl
		script      *fixtures.EventScript
	)

	base := time.Unix(1_700_000_000, 0)

	BeforeEach(func() {
		ctx = context.Background()

		key, err := infra.GenerateKey()
		Expect(err).NotTo(HaveOccurred())
		journal, err = infra.OpenJournal(GinkgoT().TempDir(), key, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())

		exemptions := policy.NewExemptions("helpme", "launcher")
		clock = fixtures.NewClock(base)
		classifier = &fixtures.ScoreClassifier{}
		neutralizer = &fixtures.CountingNeutralizer{}

		cache := state.NewActivityCache(exemptions)
		blocks = state.NewBlockRegistry(exemptions, nil, zap.NewNop()).WithClock(clock.Now)
		resolver = usecase.NewForegroundResolver(usecase.DefaultResolverConfig(), journal, journal, cache, exemptions, zap.NewNop())
		blocks.BindEnforcement(resolver, neutralizer)
		sampler = usecase.NewSampler(usecase.DefaultSamplerConfig(), fixtures.StaticFrames{}, classifier,
			resolver, cache, blocks, neutralizer, exemptions, zap.NewNop()).WithClock(clock.Now)
		enforcer = usecase.NewEnforcer(resolver, blocks, neutralizer, journal, exemptions, zap.NewNop()).WithClock(clock.Now)
	})

	AfterEach(func() {
		journal.Close()
	})

	play := func(steps ...fixtures.Step) {
		script = fixtures.NewEventScript(base, steps...)
		Expect(script.Play(journal)).To(Succeed())
	}

	Describe("flagged content with no activity history", func() {
		It("blocks the sentinel and neutralizes directly", func() {
			classifier.Set(0.8)

			result := sampler.SampleOnce(ctx)

			Expect(result.Flagged).To(BeTrue())
			Expect(result.BlockedID).To(Equal(policy.SentinelSubject))
			Expect(result.Source).To(Equal(domain.SourceSentinel))
			Expect(neutralizer.Calls()).To(Equal(1))
			Expect(blocks.IsBlocked(policy.SentinelSubject, clock.Now())).To(BeTrue())
		})
	})

	Describe("own window on top of a flagged app", func() {
		Context("without a neutral-surface event", func() {
			It("blocks the last app seen before self", func() {
				play(fixtures.Step{At: 0, Subject: "camera"}, fixtures.Step{At: 5, Subject: "helpme"})
				clock.Set(script.At(6))
				classifier.Set(0.8)

				fg := resolver.Resolve(clock.Now())
				Expect(fg.SubjectID).To(Equal("camera"))
				Expect(fg.Confidence).To(Equal(domain.ConfidenceStale))

				result := sampler.SampleOnce(ctx)
				Expect(result.BlockedID).To(Equal("camera"))
				Expect(blocks.IsBlocked("helpme", clock.Now())).To(BeFalse())
			})
		})

		Context("with the neutral surface shortly after the app", func() {
			It("resolves the app with high confidence", func() {
				play(
					fixtures.Step{At: 0, Subject: "camera"},
					fixtures.Step{At: 3, Subject: "launcher", Neutral: true},
					fixtures.Step{At: 5, Subject: "helpme"},
				)

				fg := resolver.Resolve(script.At(6))

				Expect(fg.SubjectID).To(Equal("camera"))
				Expect(fg.Confidence).To(Equal(domain.ConfidenceHigh))
			})
		})
	})

	Describe("enforcement after a block", func() {
		BeforeEach(func() {
			play(fixtures.Step{At: 0, Subject: "camera"})
			clock.Set(script.At(1))
			classifier.Set(0.9)

			result := sampler.SampleOnce(ctx)
			Expect(result.BlockedID).To(Equal("camera"))
			Expect(result.Source).To(Equal(domain.SourceResolved))
		})

		It("neutralizes at block time because the app is in front", func() {
			Expect(neutralizer.Calls()).To(Equal(1))
		})

		It("neutralizes on every tick while the blocked app stays in front", func() {
			clock.Set(script.At(2))
			Expect(enforcer.EnforceOnce(ctx).Neutralized).To(BeTrue())
			clock.Set(script.At(3))
			Expect(enforcer.EnforceOnce(ctx).Neutralized).To(BeTrue())
			Expect(neutralizer.Calls()).To(Equal(3))
		})

		It("leaves other apps alone", func() {
			Expect(journal.Append(domain.ActivityEvent{
				Timestamp: script.At(4), SubjectID: "browser", Kind: domain.KindForegroundEntered,
			})).To(Succeed())
			clock.Set(script.At(5))

			result := enforcer.EnforceOnce(ctx)

			Expect(result.Foreground.SubjectID).To(Equal("browser"))
			Expect(result.Neutralized).To(BeFalse())
		})

		It("stops enforcing once the block expires", func() {
			Expect(journal.Append(domain.ActivityEvent{
				Timestamp: script.At(1).Add(policy.DefaultBlockDuration), SubjectID: "camera", Kind: domain.KindForegroundEntered,
			})).To(Succeed())
			clock.Set(script.At(1).Add(policy.DefaultBlockDuration))

			result := enforcer.EnforceOnce(ctx)

			Expect(result.Foreground.SubjectID).To(Equal("camera"))
			Expect(result.Blocked).To(BeFalse())
		})
	})

	Describe("journal unavailable", func() {
		It("skips enforcement without error", func() {
			play(fixtures.Step{At: 0, Subject: "camera"})
			blocks.Block(ctx, "camera", time.Minute)
			Expect(journal.Close()).To(Succeed())

			result := enforcer.EnforceOnce(ctx)

			Expect(result.Blocked).To(BeFalse())
			Expect(resolver.Resolve(script.At(1)).Resolved()).To(BeFalse())
		})
	})
})
