//go:build integration

package integration

import (
	"context"
	"os"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/eliteGoblin/focusd/focusmode/internal/domain"
)

var _ = Describe("Mode lifecycle", func() {
	var (
		s   *stack
		ctx context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		s = newStack("Terminal", "Slack", "Steam", "Finder")
	})

	AfterEach(func() {
		s.cleanup()
	})

	Describe("Activate", func() {
		Context("when the mode exists", func() {
			It("should record the mode, block its sites and quit disallowed apps", func() {
				s.start()

				res, err := s.client.Activate(ctx, "social", domain.ActivationOptions{BlockNetwork: true})
				Expect(err).NotTo(HaveOccurred())
				Expect(res.Outcome).To(Equal(domain.OutcomeOK))
				Expect(res.SessionID).NotTo(BeEmpty())
				Expect(res.Network.Status).To(Equal(domain.StepOK))

				Expect(strings.TrimSpace(s.dir.StateContent())).To(Equal("social"))
				Expect(s.dir.HostsContent()).To(ContainSubstring("youtube.com"))

				Eventually(func() bool { return s.desktop.Running("Steam") }, waitTimeout).Should(BeFalse())
				Expect(s.desktop.Running("Slack")).To(BeTrue())
				Expect(s.desktop.Running("Terminal")).To(BeTrue())
				Expect(s.desktop.Quits()).NotTo(ContainElement("Slack"))
			})

			It("should keep enforcing apps launched later", func() {
				s.start()
				_, err := s.client.Activate(ctx, "social", domain.ActivationOptions{})
				Expect(err).NotTo(HaveOccurred())
				Eventually(func() bool { return s.desktop.Running("Steam") }, waitTimeout).Should(BeFalse())

				s.desktop.Launch("Steam")
				Eventually(func() bool { return s.desktop.Running("Steam") }, waitTimeout).Should(BeFalse())
			})

			It("should report the running enforcer loop", func() {
				s.start()
				_, err := s.client.Activate(ctx, "social", domain.ActivationOptions{})
				Expect(err).NotTo(HaveOccurred())

				st, err := s.client.Status(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(st.Active).To(BeTrue())
				Expect(st.Mode).To(Equal("social"))
				Expect(st.Loops).To(HaveLen(1))
				Expect(st.Loops[0].Role).To(Equal(domain.LoopEnforcer))
			})
		})

		Context("when the mode does not exist", func() {
			It("should change nothing", func() {
				s.start()

				res, err := s.client.Activate(ctx, "nonexistent", domain.ActivationOptions{BlockNetwork: true})
				Expect(err).NotTo(HaveOccurred())
				Expect(res.Outcome).To(Equal(domain.OutcomeModeNotFound))

				Expect(strings.TrimSpace(s.dir.StateContent())).To(BeEmpty())
				Expect(s.dir.HostsContent()).NotTo(ContainSubstring("youtube.com"))
				Consistently(s.desktop.Quits, "100ms").Should(BeEmpty())
			})
		})

		Context("without administrator rights", func() {
			It("should still enforce apps", func() {
				s.runner.Denied = true
				s.start()

				res, err := s.client.Activate(ctx, "social", domain.ActivationOptions{BlockNetwork: true})
				Expect(err).NotTo(HaveOccurred())
				Expect(res.Outcome).To(Equal(domain.OutcomeInsufficientPrivilege))
				Expect(res.Network.Status).To(Equal(domain.StepInsufficientPrivilege))

				Expect(strings.TrimSpace(s.dir.StateContent())).To(Equal("social"))
				Eventually(func() bool { return s.desktop.Running("Steam") }, waitTimeout).Should(BeFalse())
			})
		})

		Context("when switching modes", func() {
			It("should enforce the latest mode only", func() {
				Expect(s.dir.AddMode("gaming", []string{"Steam", "Terminal", "Finder"}, nil)).To(Succeed())
				s.start()

				_, err := s.client.Activate(ctx, "gaming", domain.ActivationOptions{})
				Expect(err).NotTo(HaveOccurred())
				_, err = s.client.Activate(ctx, "social", domain.ActivationOptions{})
				Expect(err).NotTo(HaveOccurred())

				Expect(strings.TrimSpace(s.dir.StateContent())).To(Equal("social"))
				Eventually(func() bool { return s.desktop.Running("Steam") }, waitTimeout).Should(BeFalse())

				st, err := s.client.Status(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(st.Loops).To(HaveLen(1))
				Expect(st.Loops[0].Mode).To(Equal("social"))
			})
		})
	})

	Describe("Deactivate", func() {
		It("should restore the hosts file, clear the state and stop the supervisor", func() {
			s.start()
			_, err := s.client.Activate(ctx, "social", domain.ActivationOptions{BlockNetwork: true})
			Expect(err).NotTo(HaveOccurred())
			Eventually(func() bool { return s.desktop.Running("Steam") }, waitTimeout).Should(BeFalse())

			report, err := s.client.Deactivate(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Step(domain.StepState).Status).To(Equal(domain.StepOK))
			Expect(report.Step(domain.StepNetwork).Status).To(Equal(domain.StepOK))
			Expect(report.Step(domain.StepLoops).Status).To(Equal(domain.StepOK))

			s.waitExit()
			Expect(strings.TrimSpace(s.dir.StateContent())).To(BeEmpty())
			Expect(s.dir.HostsContent()).NotTo(ContainSubstring("youtube.com"))
			Expect(s.registry.IsAlive()).To(BeFalse())
			_, statErr := os.Stat(s.dir.Paths.SocketPath())
			Expect(os.IsNotExist(statErr)).To(BeTrue())

			// Nothing is enforced once inactive.
			s.desktop.Launch("Steam")
			Consistently(func() bool { return s.desktop.Running("Steam") }, "100ms").Should(BeTrue())
		})

		It("should succeed when nothing is active", func() {
			s.start()

			report, err := s.client.Deactivate(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Step(domain.StepState).Status).To(Equal(domain.StepOK))
			s.waitExit()
		})
	})

	Describe("Supervisor restart", func() {
		It("should resume the persisted mode", func() {
			s.start()
			_, err := s.client.Activate(ctx, "social", domain.ActivationOptions{})
			Expect(err).NotTo(HaveOccurred())
			s.stop()

			Expect(strings.TrimSpace(s.dir.StateContent())).To(Equal("social"))

			s.desktop.Launch("Steam")
			s.start()
			Eventually(func() bool { return s.desktop.Running("Steam") }, waitTimeout).Should(BeFalse())

			st, err := s.client.Status(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(st.Active).To(BeTrue())
			Expect(st.SessionID).NotTo(BeEmpty())
		})
	})

	Describe("Allow-list edits", func() {
		It("should apply on the next tick without re-activation", func() {
			Expect(s.dir.AddMode("writing", []string{"Terminal", "Finder", "Slack"}, nil)).To(Succeed())
			s.start()
			_, err := s.client.Activate(ctx, "writing", domain.ActivationOptions{})
			Expect(err).NotTo(HaveOccurred())
			Eventually(func() bool { return s.desktop.Running("Steam") }, waitTimeout).Should(BeFalse())

			Expect(s.dir.AddMode("writing", []string{"Terminal", "Finder"}, nil)).To(Succeed())
			Eventually(func() bool { return s.desktop.Running("Slack") }, waitTimeout).Should(BeFalse())
		})

		It("should stop acting when the allow-list disappears", func() {
			Expect(s.dir.AddMode("writing", []string{"Terminal", "Finder"}, nil)).To(Succeed())
			s.start()
			_, err := s.client.Activate(ctx, "writing", domain.ActivationOptions{})
			Expect(err).NotTo(HaveOccurred())
			Eventually(func() bool { return s.desktop.Running("Steam") }, waitTimeout).Should(BeFalse())

			Expect(s.dir.RemoveAllowList("writing")).To(Succeed())
			_, err = s.dir.Modes().AllowList("writing")
			Expect(err).To(MatchError(domain.ErrModeNotFound))
			// Let an in-flight tick finish before relaunching.
			time.Sleep(3 * tickInterval)
			s.desktop.Launch("Slack")
			Consistently(func() bool { return s.desktop.Running("Slack") }, "100ms").Should(BeTrue())
		})
	})
})
