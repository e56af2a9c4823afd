package cascade_test

import (
	"context"
	"errors"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"applicationservice/src/domain"
	"applicationservice/src/services/cascade"
	"applicationservice/src/test_artefacts/fakes"
	"applicationservice/src/test_artefacts/stubs"

	"github.com/google/uuid"
)

type recordingInvalidator struct {
	refs []domain.EntityRef
	err  error
}

func (i *recordingInvalidator) Invalidate(ctx context.Context, kind domain.EntityKind, id uuid.UUID) error {
	i.refs = append(i.refs, domain.NewEntityRef(kind, id))
	return i.err
}

var _ = Describe("CascadeService", func() {
	var (
		ctx         context.Context
		store       *fakes.ApplicationStore
		invalidator *recordingInvalidator
		service     *cascade.CascadeService
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = fakes.NewApplicationStore()
		invalidator = &recordingInvalidator{}
		service = cascade.NewCascadeService(slog.New(slog.NewTextHandler(GinkgoWriter, nil)), store, invalidator)
	})

	Context("when a product is deleted", func() {
		It("removes every application for that product and nothing else", func() {
			// ARRANGE
			productID := uuid.New()
			store.Seed(
				stubs.NewApplicationStub().WithProductID(productID).Get(),
				stubs.NewApplicationStub().WithProductID(productID).Get(),
				stubs.NewApplicationStub().Get(),
			)
			envelope := stubs.NewEnvelopeStub().
				WithEventType(domain.EventProductDeleted).
				WithSubjectID(productID).
				Get()

			// ACT
			deleted, err := service.Apply(ctx, envelope)

			// ASSERT
			Expect(err).NotTo(HaveOccurred())
			Expect(deleted).To(BeEquivalentTo(2))
			Expect(store.Count()).To(Equal(1))
			Expect(invalidator.refs).To(ConsistOf(domain.NewEntityRef(domain.KindProduct, productID)))
		})
	})

	Context("when a user is deleted", func() {
		It("removes the user's applications", func() {
			userID := uuid.New()
			store.Seed(
				stubs.NewApplicationStub().WithUserID(userID).Get(),
				stubs.NewApplicationStub().Get(),
			)
			envelope := stubs.NewEnvelopeStub().WithSubjectID(userID).Get()

			deleted, err := service.Apply(ctx, envelope)

			Expect(err).NotTo(HaveOccurred())
			Expect(deleted).To(BeEquivalentTo(1))
		})

		It("deletes nothing on a duplicate delivery", func() {
			userID := uuid.New()
			store.Seed(stubs.NewApplicationStub().WithUserID(userID).Get())
			envelope := stubs.NewEnvelopeStub().WithSubjectID(userID).Get()

			_, err := service.Apply(ctx, envelope)
			Expect(err).NotTo(HaveOccurred())

			deleted, err := service.Apply(ctx, envelope)

			Expect(err).NotTo(HaveOccurred())
			Expect(deleted).To(BeZero())
		})
	})

	It("does not fail the deletion when the cache cannot be cleared", func() {
		invalidator.err = errors.New("redis down")
		userID := uuid.New()
		store.Seed(stubs.NewApplicationStub().WithUserID(userID).Get())

		deleted, err := service.Apply(ctx, stubs.NewEnvelopeStub().WithSubjectID(userID).Get())

		Expect(err).NotTo(HaveOccurred())
		Expect(deleted).To(BeEquivalentTo(1))
	})

	It("refuses events that are not deletions", func() {
		envelope := stubs.NewEnvelopeStub().WithEventType(domain.EventTagAttachRequest).Get()

		_, err := service.Apply(ctx, envelope)

		Expect(errors.Is(err, domain.ErrValidation)).To(BeTrue())
	})
})
