package applications_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"applicationservice/src/adapters/remote"
	"applicationservice/src/domain"
	"applicationservice/src/domain/entities"
	"applicationservice/src/services/applications"
	"applicationservice/src/test_artefacts/fakes"

	"github.com/google/uuid"
)

var _ = Describe("CreateApplication", func() {
	var (
		ctx       context.Context
		logger    *slog.Logger
		checker   *fakes.ExistenceChecker
		store     *fakes.ApplicationStore
		publisher *fakes.AttachmentPublisher
		service   *applications.ApplicationService
		userID    uuid.UUID
		productID uuid.UUID
		actor     domain.Actor
	)

	BeforeEach(func() {
		ctx = context.Background()
		logger = slog.New(slog.NewTextHandler(GinkgoWriter, nil))
		checker = fakes.NewExistenceChecker()
		store = fakes.NewApplicationStore()
		publisher = fakes.NewAttachmentPublisher()
		service = applications.NewApplicationService(logger, checker, store, store, publisher)

		userID = uuid.New()
		productID = uuid.New()
		actor = domain.Actor{ID: userID, Role: domain.RoleUser}
	})

	Context("when every referenced entity exists", func() {
		It("persists a SUBMITTED application and requests tag creation", func() {
			// ARRANGE
			request := applications.CreateApplicationRequest{
				UserID:    userID,
				ProductID: productID,
				TagNames:  []string{"urgent"},
			}

			// ACT
			app, err := service.CreateApplication(ctx, actor, request)

			// ASSERT
			Expect(err).NotTo(HaveOccurred())
			Expect(app.Status).To(Equal(entities.StatusSubmitted))
			Expect(store.Count()).To(Equal(1))

			envelopes := publisher.Envelopes()
			Expect(envelopes).To(HaveLen(1))
			Expect(envelopes[0].EventType).To(Equal(domain.EventTagCreateRequest))
			Expect(envelopes[0].Payload).To(Equal([]string{"urgent"}))
			Expect(envelopes[0].SubjectID).To(Equal(app.ID))
			Expect(envelopes[0].ActorID).To(Equal(actor.ID))

			history, err := service.GetHistory(ctx, actor, app.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(history).To(HaveLen(1))
			Expect(history[0].FromStatus).To(BeNil())
			Expect(history[0].ToStatus).To(Equal(entities.StatusSubmitted))
		})

		It("publishes exactly one envelope per requested attachment kind", func() {
			// ARRANGE
			fileIDs := []uuid.UUID{uuid.New(), uuid.New()}
			tagIDs := []uuid.UUID{uuid.New()}
			request := applications.CreateApplicationRequest{
				UserID:    userID,
				ProductID: productID,
				TagNames:  []string{"vip", " vip ", "new"},
				TagIDs:    tagIDs,
				FileIDs:   fileIDs,
			}

			// ACT
			app, err := service.CreateApplication(ctx, actor, request)

			// ASSERT
			Expect(err).NotTo(HaveOccurred())
			Expect(store.Writes()).To(Equal(1))
			Expect(app.Files).To(ConsistOf(fileIDs))
			Expect(app.Tags).To(ConsistOf(tagIDs))
			Expect(publisher.EventTypes()).To(ConsistOf(
				domain.EventTagCreateRequest,
				domain.EventTagAttachRequest,
				domain.EventFileAttachRequest,
			))
			Expect(publisher.Envelopes()[0].Payload).To(Equal([]string{"vip", "new"}))
			Expect(checker.Calls()).To(HaveLen(5))
		})

		It("publishes nothing when no attachment was requested", func() {
			_, err := service.CreateApplication(ctx, actor, applications.CreateApplicationRequest{UserID: userID, ProductID: productID})

			Expect(err).NotTo(HaveOccurred())
			Expect(publisher.Envelopes()).To(BeEmpty())
		})

		It("keeps the application when publishing fails", func() {
			publisher.FailWith(errors.New("producer closed"))

			app, err := service.CreateApplication(ctx, actor, applications.CreateApplicationRequest{
				UserID:    userID,
				ProductID: productID,
				FileIDs:   []uuid.UUID{uuid.New()},
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(app).NotTo(BeNil())
			Expect(store.Count()).To(Equal(1))
		})

		It("lets an admin apply on behalf of a user", func() {
			admin := domain.Actor{ID: uuid.New(), Role: domain.RoleAdmin}

			app, err := service.CreateApplication(ctx, admin, applications.CreateApplicationRequest{UserID: userID, ProductID: productID})

			Expect(err).NotTo(HaveOccurred())
			Expect(app.UserID).To(Equal(userID))
		})
	})

	Context("when a dependency is unavailable", func() {
		It("fails with ErrServiceUnavailable and persists nothing", func() {
			// ARRANGE
			checker.MarkUnavailable(domain.KindFile)

			// ACT
			app, err := service.CreateApplication(ctx, actor, applications.CreateApplicationRequest{
				UserID:    userID,
				ProductID: productID,
				FileIDs:   []uuid.UUID{uuid.New(), uuid.New()},
				TagNames:  []string{"urgent"},
			})

			// ASSERT
			Expect(app).To(BeNil())
			Expect(errors.Is(err, domain.ErrServiceUnavailable)).To(BeTrue())
			Expect(store.Count()).To(BeZero())
			Expect(publisher.Envelopes()).To(BeEmpty())
		})

		It("fails when the product service times out", func() {
			// ARRANGE
			slowProducts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if strings.HasPrefix(r.URL.Path, "/products/") {
					select {
					case <-r.Context().Done():
					case <-time.After(time.Second):
					}
				}
				fmt.Fprint(w, "true")
			}))
			defer slowProducts.Close()

			gateway := remote.NewExistenceGateway(logger, remote.GatewayConfig{
				BaseURLs: map[domain.EntityKind]string{
					domain.KindUser:    slowProducts.URL,
					domain.KindProduct: slowProducts.URL,
				},
				Timeout:          50 * time.Millisecond,
				BreakerThreshold: 5,
			})
			service = applications.NewApplicationService(logger, gateway, store, store, publisher)

			// ACT
			_, err := service.CreateApplication(ctx, actor, applications.CreateApplicationRequest{UserID: userID, ProductID: productID})

			// ASSERT
			Expect(errors.Is(err, domain.ErrServiceUnavailable)).To(BeTrue())
			Expect(store.Count()).To(BeZero())
		})
	})

	Context("when a referenced entity does not exist", func() {
		It("fails with ErrNotFound and persists nothing", func() {
			fileID := uuid.New()
			checker.MarkAbsent(domain.KindFile, fileID)

			_, err := service.CreateApplication(ctx, actor, applications.CreateApplicationRequest{
				UserID:    userID,
				ProductID: productID,
				FileIDs:   []uuid.UUID{fileID},
			})

			Expect(errors.Is(err, domain.ErrNotFound)).To(BeTrue())
			Expect(store.Count()).To(BeZero())
		})
	})

	Context("when the request is not allowed", func() {
		It("rejects an actor applying for someone else", func() {
			other := domain.Actor{ID: uuid.New(), Role: domain.RoleReviewer}

			_, err := service.CreateApplication(ctx, other, applications.CreateApplicationRequest{UserID: userID, ProductID: productID})

			Expect(errors.Is(err, domain.ErrForbidden)).To(BeTrue())
			Expect(checker.Calls()).To(BeEmpty())
		})

		It("rejects a missing actor", func() {
			_, err := service.CreateApplication(ctx, domain.Actor{}, applications.CreateApplicationRequest{UserID: userID, ProductID: productID})

			Expect(errors.Is(err, domain.ErrForbidden)).To(BeTrue())
		})
	})

	DescribeTable("rejects invalid input",
		func(mutate func(*applications.CreateApplicationRequest)) {
			request := applications.CreateApplicationRequest{UserID: userID, ProductID: productID}
			mutate(&request)

			_, err := service.CreateApplication(ctx, domain.Actor{ID: uuid.New(), Role: domain.RoleAdmin}, request)

			Expect(errors.Is(err, domain.ErrValidation)).To(BeTrue())
			Expect(store.Count()).To(BeZero())
		},
		Entry("missing user", func(r *applications.CreateApplicationRequest) { r.UserID = uuid.Nil }),
		Entry("missing product", func(r *applications.CreateApplicationRequest) { r.ProductID = uuid.Nil }),
		Entry("blank tag name", func(r *applications.CreateApplicationRequest) { r.TagNames = []string{"  "} }),
		Entry("nil file id", func(r *applications.CreateApplicationRequest) { r.FileIDs = []uuid.UUID{uuid.Nil} }),
		Entry("comment too long", func(r *applications.CreateApplicationRequest) {
			comment := strings.Repeat("a", 2001)
			r.Comment = &comment
		}),
	)

	Context("when the user already has an open application for the product", func() {
		It("fails with ErrConflict", func() {
			request := applications.CreateApplicationRequest{UserID: userID, ProductID: productID}
			_, err := service.CreateApplication(ctx, actor, request)
			Expect(err).NotTo(HaveOccurred())

			_, err = service.CreateApplication(ctx, actor, request)

			Expect(errors.Is(err, domain.ErrConflict)).To(BeTrue())
			Expect(store.Count()).To(Equal(1))
		})
	})
})
