package applications_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"applicationservice/src/domain"
	"applicationservice/src/domain/entities"
	"applicationservice/src/services/applications"
	"applicationservice/src/test_artefacts/fakes"
	"applicationservice/src/test_artefacts/stubs"

	"github.com/google/uuid"
)

// drain follows next_cursor until the end of the stream.
func drain(ctx context.Context, service *applications.ApplicationService, actor domain.Actor, limit int) ([]entities.Application, int) {
	var (
		all    []entities.Application
		cursor string
		pages  int
	)
	for {
		page, err := service.ListApplications(ctx, actor, applications.ListApplicationsRequest{Cursor: cursor, Limit: limit})
		Expect(err).NotTo(HaveOccurred())
		pages++
		all = append(all, page.Items...)
		if page.NextCursor == nil {
			return all, pages
		}
		cursor = page.NextCursor.Encode()
	}
}

func strictlyDecreasing(items []entities.Application) bool {
	for i := 1; i < len(items); i++ {
		prev, curr := items[i-1], items[i]
		if curr.CreatedAt.After(prev.CreatedAt) {
			return false
		}
		if curr.CreatedAt.Equal(prev.CreatedAt) && bytes.Compare(curr.ID[:], prev.ID[:]) >= 0 {
			return false
		}
	}
	return true
}

var _ = Describe("ListApplications", func() {
	var (
		ctx      context.Context
		store    *fakes.ApplicationStore
		service  *applications.ApplicationService
		reviewer domain.Actor
		base     time.Time
	)

	seed := func(n int, at func(i int) time.Time) []entities.Application {
		apps := make([]entities.Application, 0, n)
		for i := 0; i < n; i++ {
			app := stubs.NewApplicationStub().WithCreatedAt(at(i)).Get()
			apps = append(apps, app)
		}
		store.Seed(apps...)
		return apps
	}

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
		reviewer = domain.Actor{ID: uuid.New(), Role: domain.RoleReviewer}
		base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	})

	Context("when paging through a fixed snapshot", func() {
		It("yields every item once in strictly decreasing order", func() {
			// ARRANGE: several rows share created_at so ties are broken by id
			seeded := seed(47, func(i int) time.Time { return base.Add(time.Duration(i/3) * time.Second) })

			// ACT
			all, pages := drain(ctx, service, reviewer, 10)

			// ASSERT
			Expect(all).To(HaveLen(len(seeded)))
			Expect(pages).To(Equal(5))
			Expect(strictlyDecreasing(all)).To(BeTrue())

			seen := make(map[uuid.UUID]bool)
			for _, app := range all {
				Expect(seen).NotTo(HaveKey(app.ID))
				seen[app.ID] = true
			}
		})

		It("returns no cursor when exactly limit items remain", func() {
			seed(20, func(i int) time.Time { return base.Add(time.Duration(i) * time.Second) })

			all, pages := drain(ctx, service, reviewer, 10)

			Expect(all).To(HaveLen(20))
			Expect(pages).To(Equal(2))
		})

		It("returns an empty page without cursor for an empty store", func() {
			page, err := service.ListApplications(ctx, reviewer, applications.ListApplicationsRequest{})

			Expect(err).NotTo(HaveOccurred())
			Expect(page.Items).To(BeEmpty())
			Expect(page.NextCursor).To(BeNil())
		})

		It("uses the default limit", func() {
			seed(domain.DefaultPageLimit+5, func(i int) time.Time { return base.Add(time.Duration(i) * time.Second) })

			page, err := service.ListApplications(ctx, reviewer, applications.ListApplicationsRequest{})

			Expect(err).NotTo(HaveOccurred())
			Expect(page.Items).To(HaveLen(domain.DefaultPageLimit))
			Expect(page.NextCursor).NotTo(BeNil())
		})
	})

	Context("when a new application is inserted between pages", func() {
		It("does not repeat anything from the first page", func() {
			// ARRANGE
			seed(15, func(i int) time.Time { return base.Add(time.Duration(i) * time.Second) })
			first, err := service.ListApplications(ctx, reviewer, applications.ListApplicationsRequest{Limit: 10})
			Expect(err).NotTo(HaveOccurred())

			store.Seed(stubs.NewApplicationStub().WithCreatedAt(time.Now()).Get())

			// ACT
			second, err := service.ListApplications(ctx, reviewer, applications.ListApplicationsRequest{
				Cursor: first.NextCursor.Encode(),
				Limit:  10,
			})

			// ASSERT
			Expect(err).NotTo(HaveOccurred())
			Expect(second.Items).To(HaveLen(5))
			firstIDs := make(map[uuid.UUID]bool)
			for _, app := range first.Items {
				firstIDs[app.ID] = true
			}
			for _, app := range second.Items {
				Expect(firstIDs).NotTo(HaveKey(app.ID))
			}
		})
	})

	Context("when a plain user lists", func() {
		It("only sees their own applications", func() {
			userID := uuid.New()
			store.Seed(
				stubs.NewApplicationStub().WithUserID(userID).Get(),
				stubs.NewApplicationStub().WithUserID(userID).WithCreatedAt(base).Get(),
				stubs.NewApplicationStub().Get(),
			)

			page, err := service.ListApplications(ctx, domain.Actor{ID: userID, Role: domain.RoleUser}, applications.ListApplicationsRequest{})

			Expect(err).NotTo(HaveOccurred())
			Expect(page.Items).To(HaveLen(2))
			for _, app := range page.Items {
				Expect(app.UserID).To(Equal(userID))
			}
		})

		It("cannot ask for another user", func() {
			other := uuid.New()

			_, err := service.ListApplications(ctx, domain.Actor{ID: uuid.New(), Role: domain.RoleUser}, applications.ListApplicationsRequest{UserID: &other})

			Expect(errors.Is(err, domain.ErrForbidden)).To(BeTrue())
		})
	})

	Context("when filtering by product", func() {
		It("keeps the order and drops other products", func() {
			productID := uuid.New()
			seed(5, func(i int) time.Time { return base.Add(time.Duration(i) * time.Second) })
			store.Seed(
				stubs.NewApplicationStub().WithProductID(productID).WithCreatedAt(base).Get(),
				stubs.NewApplicationStub().WithProductID(productID).WithCreatedAt(base.Add(time.Hour)).Get(),
			)

			page, err := service.ListApplications(ctx, reviewer, applications.ListApplicationsRequest{ProductID: &productID})

			Expect(err).NotTo(HaveOccurred())
			Expect(page.Items).To(HaveLen(2))
			Expect(strictlyDecreasing(page.Items)).To(BeTrue())
		})
	})

	Context("when Page is called directly", func() {
		BeforeEach(func() {
			seed(3, func(i int) time.Time { return base.Add(time.Duration(i) * time.Second) })
		})

		It("treats a zero limit as the default", func() {
			page, err := service.Page(ctx, domain.ApplicationFilter{}, nil, 0)

			Expect(err).NotTo(HaveOccurred())
			Expect(page.Items).To(HaveLen(3))
			Expect(page.NextCursor).To(BeNil())
		})

		It("rejects a negative limit instead of slicing with it", func() {
			var (
				page *applications.ApplicationPage
				err  error
			)
			Expect(func() {
				page, err = service.Page(ctx, domain.ApplicationFilter{}, nil, -1)
			}).NotTo(Panic())

			Expect(errors.Is(err, domain.ErrValidation)).To(BeTrue())
			Expect(page).To(BeNil())
		})
	})

	DescribeTable("rejects invalid paging input",
		func(request applications.ListApplicationsRequest) {
			_, err := service.ListApplications(ctx, reviewer, request)
			Expect(errors.Is(err, domain.ErrValidation)).To(BeTrue())
		},
		Entry("limit above maximum", applications.ListApplicationsRequest{Limit: domain.MaxPageLimit + 1}),
		Entry("negative limit", applications.ListApplicationsRequest{Limit: -5}),
		Entry("garbage cursor", applications.ListApplicationsRequest{Cursor: "!!"}),
	)
})
