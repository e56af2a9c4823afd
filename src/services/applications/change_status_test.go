package applications_test

import (
	"context"
	"errors"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"applicationservice/src/domain"
	"applicationservice/src/domain/entities"
	"applicationservice/src/services/applications"
	"applicationservice/src/test_artefacts/fakes"
	"applicationservice/src/test_artefacts/stubs"

	"github.com/google/uuid"
)

var _ = Describe("ChangeStatus", func() {
	var (
		ctx      context.Context
		store    *fakes.ApplicationStore
		service  *applications.ApplicationService
		app      entities.Application
		owner    domain.Actor
		reviewer domain.Actor
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = fakes.NewApplicationStore()
		service = applications.NewApplicationService(
			slog.New(slog.NewTextHandler(GinkgoWriter, nil)),
			fakes.NewExistenceChecker(),
			store,
			store,
			fakes.NewAttachmentPublisher(),
		)

		app = stubs.NewApplicationStub().Get()
		store.Seed(app)
		owner = domain.Actor{ID: app.UserID, Role: domain.RoleUser}
		reviewer = domain.Actor{ID: uuid.New(), Role: domain.RoleReviewer}
	})

	It("walks the review flow and records every step", func() {
		reason := "looks good"

		_, err := service.ChangeStatus(ctx, reviewer, app.ID, applications.ChangeStatusRequest{Status: entities.StatusUnderReview})
		Expect(err).NotTo(HaveOccurred())

		approved, err := service.ChangeStatus(ctx, reviewer, app.ID, applications.ChangeStatusRequest{
			Status: entities.StatusApproved,
			Reason: &reason,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(approved.Status).To(Equal(entities.StatusApproved))
		Expect(approved.DecidedAt).NotTo(BeNil())

		history, err := service.GetHistory(ctx, owner, app.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(history).To(HaveLen(2))
		Expect(*history[0].FromStatus).To(Equal(entities.StatusSubmitted))
		Expect(history[1].ToStatus).To(Equal(entities.StatusApproved))
		Expect(history[1].Reason).To(HaveValue(Equal(reason)))
		Expect(history[1].ActorID).To(Equal(reviewer.ID))
	})

	It("lets the owner cancel", func() {
		cancelled, err := service.ChangeStatus(ctx, owner, app.ID, applications.ChangeStatusRequest{Status: entities.StatusCancelled})

		Expect(err).NotTo(HaveOccurred())
		Expect(cancelled.Status).To(Equal(entities.StatusCancelled))
		Expect(cancelled.DecidedAt).NotTo(BeNil())
	})

	It("does not let the owner review their own application", func() {
		_, err := service.ChangeStatus(ctx, owner, app.ID, applications.ChangeStatusRequest{Status: entities.StatusUnderReview})

		Expect(errors.Is(err, domain.ErrForbidden)).To(BeTrue())
	})

	It("rejects a transition out of a terminal status", func() {
		store.Seed(stubs.NewApplicationStub().WithID(app.ID).WithStatus(entities.StatusRejected).Get())

		_, err := service.ChangeStatus(ctx, reviewer, app.ID, applications.ChangeStatusRequest{Status: entities.StatusApproved})

		Expect(errors.Is(err, domain.ErrConflict)).To(BeTrue())
		Expect(store.Writes()).To(BeZero())
	})

	It("rejects an unknown status", func() {
		_, err := service.ChangeStatus(ctx, reviewer, app.ID, applications.ChangeStatusRequest{Status: "ARCHIVED"})

		Expect(errors.Is(err, domain.ErrValidation)).To(BeTrue())
	})

	It("retries a stale write", func() {
		store.FailNextWrites(1)

		updated, err := service.ChangeStatus(ctx, reviewer, app.ID, applications.ChangeStatusRequest{Status: entities.StatusUnderReview})

		Expect(err).NotTo(HaveOccurred())
		Expect(updated.Status).To(Equal(entities.StatusUnderReview))
	})

	Describe("GetHistory", func() {
		It("is forbidden to other users", func() {
			_, err := service.GetHistory(ctx, domain.Actor{ID: uuid.New(), Role: domain.RoleUser}, app.ID)

			Expect(errors.Is(err, domain.ErrForbidden)).To(BeTrue())
		})

		It("returns an empty list rather than nil", func() {
			history, err := service.GetHistory(ctx, reviewer, app.ID)

			Expect(err).NotTo(HaveOccurred())
			Expect(history).NotTo(BeNil())
			Expect(history).To(BeEmpty())
		})
	})
})
