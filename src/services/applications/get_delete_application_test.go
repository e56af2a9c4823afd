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
	"applicationservice/src/test_artefacts/comparer"
	"applicationservice/src/test_artefacts/fakes"
	"applicationservice/src/test_artefacts/stubs"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

var _ = Describe("GetApplication and DeleteApplication", func() {
	var (
		ctx     context.Context
		checker *fakes.ExistenceChecker
		store   *fakes.ApplicationStore
		service *applications.ApplicationService
		app     entities.Application
		owner   domain.Actor
		live    uuid.UUID
		gone    uuid.UUID
	)

	BeforeEach(func() {
		ctx = context.Background()
		checker = fakes.NewExistenceChecker()
		store = fakes.NewApplicationStore()
		service = applications.NewApplicationService(
			slog.New(slog.NewTextHandler(GinkgoWriter, nil)),
			checker,
			store,
			store,
			fakes.NewAttachmentPublisher(),
		)

		live, gone = uuid.New(), uuid.New()
		app = stubs.NewApplicationStub().WithFiles(live, gone).WithTags(gone).Get()
		store.Seed(app)
		owner = domain.Actor{ID: app.UserID, Role: domain.RoleUser}
	})

	Describe("GetApplication", func() {
		It("hides and prunes references confirmed absent", func() {
			checker.MarkAbsent(domain.KindFile, gone)

			got, err := service.GetApplication(ctx, owner, app.ID)

			Expect(err).NotTo(HaveOccurred())
			Expect(got.Files).To(Equal([]uuid.UUID{live}))
			Expect(got.Tags).To(Equal([]uuid.UUID{gone}))

			stored, err := store.GetByID(ctx, app.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Version).To(Equal(app.Version + 1))

			expected := app
			expected.Files = []uuid.UUID{live}
			Expect(cmp.Diff(expected, *stored, comparer.IgnoreWriteStamps(), comparer.UnorderedIDs())).To(BeEmpty())
		})

		It("keeps references it cannot resolve", func() {
			checker.MarkUnavailable(domain.KindFile).MarkUnavailable(domain.KindTag)

			got, err := service.GetApplication(ctx, owner, app.ID)

			Expect(err).NotTo(HaveOccurred())
			Expect(got.Files).To(ConsistOf(live, gone))
			Expect(store.Writes()).To(BeZero())
		})

		It("still answers when pruning loses every race", func() {
			checker.MarkAbsent(domain.KindTag, gone)
			store.FailNextWrites(10)

			got, err := service.GetApplication(ctx, owner, app.ID)

			Expect(err).NotTo(HaveOccurred())
			Expect(got.Tags).To(BeEmpty())
		})

		It("lets a reviewer read any application", func() {
			_, err := service.GetApplication(ctx, domain.Actor{ID: uuid.New(), Role: domain.RoleReviewer}, app.ID)

			Expect(err).NotTo(HaveOccurred())
		})

		It("forbids other users", func() {
			_, err := service.GetApplication(ctx, domain.Actor{ID: uuid.New(), Role: domain.RoleUser}, app.ID)

			Expect(errors.Is(err, domain.ErrForbidden)).To(BeTrue())
		})

		It("returns not found for an unknown id", func() {
			_, err := service.GetApplication(ctx, owner, uuid.New())

			Expect(errors.Is(err, domain.ErrNotFound)).To(BeTrue())
		})
	})

	Describe("DeleteApplication", func() {
		It("removes the owner's application", func() {
			Expect(service.DeleteApplication(ctx, owner, app.ID)).To(Succeed())
			Expect(store.Count()).To(BeZero())
		})

		It("does not let a reviewer delete", func() {
			err := service.DeleteApplication(ctx, domain.Actor{ID: uuid.New(), Role: domain.RoleReviewer}, app.ID)

			Expect(errors.Is(err, domain.ErrForbidden)).To(BeTrue())
			Expect(store.Count()).To(Equal(1))
		})

		It("returns not found the second time", func() {
			Expect(service.DeleteApplication(ctx, owner, app.ID)).To(Succeed())

			err := service.DeleteApplication(ctx, owner, app.ID)

			Expect(errors.Is(err, domain.ErrNotFound)).To(BeTrue())
		})

		It("rejects an actor without id", func() {
			err := service.DeleteApplication(ctx, domain.Actor{Role: domain.RoleAdmin}, app.ID)

			Expect(errors.Is(err, domain.ErrForbidden)).To(BeTrue())
		})
	})
})
