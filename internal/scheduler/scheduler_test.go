package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"
)

func TestScheduler(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Scheduler Suite")
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

var _ = Describe("Scheduler", func() {
	var log *logrus.Logger

	BeforeEach(func() {
		log = quietLogger()
	})

	Describe("Start", func() {
		It("runs the task repeatedly until stopped", func() {
			var calls int32
			task := func(ctx context.Context) (Delay, error) {
				atomic.AddInt32(&calls, 1)
				return Immediate, nil
			}
			s := New(task, time.Hour, time.Millisecond, time.Hour, log)

			Expect(s.Start(context.Background())).To(Succeed())
			Eventually(func() int32 { return atomic.LoadInt32(&calls) }, time.Second).Should(BeNumerically(">", 3))

			Expect(s.Stop(context.Background())).To(Succeed())
			Expect(s.State()).To(Equal(Idle))
		})

		It("rejects a second Start while already running", func() {
			task := func(ctx context.Context) (Delay, error) { return Long, nil }
			s := New(task, time.Hour, time.Hour, time.Hour, log)

			Expect(s.Start(context.Background())).To(Succeed())
			err := s.Start(context.Background())
			Expect(err).To(Equal(ErrAlreadyRunning))

			Expect(s.Stop(context.Background())).To(Succeed())
		})
	})

	Describe("Stop", func() {
		It("is a no-op when the scheduler was never started", func() {
			task := func(ctx context.Context) (Delay, error) { return Long, nil }
			s := New(task, time.Hour, time.Hour, time.Hour, log)
			Expect(s.Stop(context.Background())).To(Succeed())
		})

		It("can be called again after the loop has fully stopped", func() {
			task := func(ctx context.Context) (Delay, error) { return Immediate, nil }
			s := New(task, time.Hour, time.Millisecond, time.Hour, log)

			Expect(s.Start(context.Background())).To(Succeed())
			Expect(s.Stop(context.Background())).To(Succeed())
			Expect(s.Start(context.Background())).To(Succeed())
			Expect(s.Stop(context.Background())).To(Succeed())
		})
	})

	Describe("Stats", func() {
		It("records the last delay and error seen", func() {
			task := func(ctx context.Context) (Delay, error) { return ErrorBackoff, errBoom }
			s := New(task, time.Hour, time.Hour, time.Millisecond, log)

			Expect(s.Start(context.Background())).To(Succeed())
			Eventually(func() uint64 { return s.Stats().Iterations }, time.Second).Should(BeNumerically(">=", 1))
			Expect(s.Stats().LastDelay).To(Equal(ErrorBackoff))
			Expect(s.Stats().LastErr).To(Equal(errBoom))

			Expect(s.Stop(context.Background())).To(Succeed())
		})
	})
})

var errBoom = boomError{}

type boomError struct{}

func (boomError) Error() string { return "boom" }
