package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ErlanBelekov/user-management/internal/domain"
	"github.com/ErlanBelekov/user-management/internal/email"
	"github.com/ErlanBelekov/user-management/internal/onetime"
	"github.com/ErlanBelekov/user-management/internal/repository"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type accountFixture struct {
	clock    *fakeClock
	users    *memUsers
	notifier *recordingNotifier
	auth     *AuthUsecase
	uc       *AccountUsecase
}

func newAccountFixture(t *testing.T, caps domain.Capabilities) *accountFixture {
	t.Helper()
	clock := newFakeClock()
	users := newMemUsers(clock)
	hasher := &plainHasher{}
	notifier := &recordingNotifier{}

	emailTokens := onetime.NewEmailVerifier(testSecret, users, 0, onetime.WithClock(clock.Now))
	resetTokens := onetime.NewResetVerifier(testSecret, users, onetime.DefaultStateTokenTimeout, onetime.WithClock(clock.Now))

	uc := NewAccountUsecase(users, hasher, emailTokens, resetTokens, notifier, AccountConfig{
		Capabilities: caps,
		Site:         email.Site{Domain: "example.com"},
	}, discardLogger())
	auth := NewAuthUsecase(users, newTestTokenUsecase(newMemTokens(), clock), hasher, discardLogger())

	return &accountFixture{clock: clock, users: users, notifier: notifier, auth: auth, uc: uc}
}

func (f *accountFixture) register(t *testing.T, addr string) *domain.User {
	t.Helper()
	u, err := f.uc.Register(context.Background(), RegisterInput{
		Name:      "Jane",
		Email:     addr,
		Password:  "Secret123",
		Password2: "Secret123",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return u
}

func fieldErrors(t *testing.T, err error) map[string][]string {
	t.Helper()
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want *domain.ValidationError", err)
	}
	return verr.Fields
}

func TestAccountUsecase_RegisterWithoutVerification(t *testing.T) {
	f := newAccountFixture(t, domain.Capabilities{})

	u := f.register(t, "Jane@Example.com")
	if u.Email != "jane@example.com" {
		t.Errorf("email = %q, want lower-cased", u.Email)
	}
	if !u.IsActive || !u.EmailVerified {
		t.Errorf("user = %+v, want active and verified", u)
	}
	if len(f.notifier.validations) != 0 {
		t.Error("validation email sent without verification capability")
	}
}

func TestAccountUsecase_RegisterValidation(t *testing.T) {
	tests := []struct {
		name  string
		in    RegisterInput
		field string
	}{
		{"mismatch", RegisterInput{Email: "a@example.com", Password: "Secret123", Password2: "Secret124"}, "password2"},
		{"too short", RegisterInput{Email: "a@example.com", Password: "Se1", Password2: "Se1"}, "password"},
		{"too simple", RegisterInput{Email: "a@example.com", Password: "secret123", Password2: "secret123"}, "password"},
		{"too fancy", RegisterInput{Email: "a@example.com", Password: "Secret123é", Password2: "Secret123é"}, "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAccountFixture(t, domain.Capabilities{})
			_, err := f.uc.Register(context.Background(), tt.in)
			fields := fieldErrors(t, err)
			if len(fields[tt.field]) == 0 {
				t.Errorf("fields = %v, want error on %q", fields, tt.field)
			}
		})
	}
}

func TestAccountUsecase_RegisterDuplicateEmail(t *testing.T) {
	f := newAccountFixture(t, domain.Capabilities{})
	f.register(t, "jane@example.com")

	_, err := f.uc.Register(context.Background(), RegisterInput{
		Email: "JANE@example.com", Password: "Secret123", Password2: "Secret123",
	})
	fields := fieldErrors(t, err)
	if got := fields["email"]; len(got) != 1 || got[0] != msgEmailTaken {
		t.Errorf("email errors = %v", got)
	}
}

func TestAccountUsecase_RegisterVerifyFlow(t *testing.T) {
	f := newAccountFixture(t, domain.Capabilities{EmailVerificationRequired: true})
	ctx := context.Background()

	u := f.register(t, "jane@example.com")
	if u.IsActive || u.EmailVerified {
		t.Fatalf("new user = %+v, want inactive and unverified", u)
	}
	if len(f.notifier.validations) != 1 {
		t.Fatalf("validation emails = %d, want 1", len(f.notifier.validations))
	}

	if _, err := f.auth.Login(ctx, "jane@example.com", "Secret123"); !errors.Is(err, domain.ErrAccountDisabled) {
		t.Fatalf("login before verification err = %v, want ErrAccountDisabled", err)
	}

	token := f.notifier.validations[0].token
	verified, err := f.uc.VerifyEmail(ctx, token)
	if err != nil {
		t.Fatalf("VerifyEmail: %v", err)
	}
	if !verified.IsActive || !verified.EmailVerified {
		t.Errorf("verified user = %+v", verified)
	}

	if _, err := f.uc.VerifyEmail(ctx, token); !errors.Is(err, domain.ErrAlreadyVerified) {
		t.Errorf("second VerifyEmail err = %v, want ErrAlreadyVerified", err)
	}
	if _, err := f.auth.Login(ctx, "jane@example.com", "Secret123"); err != nil {
		t.Errorf("login after verification: %v", err)
	}
}

func TestAccountUsecase_RegisterSurvivesEmailFailure(t *testing.T) {
	f := newAccountFixture(t, domain.Capabilities{EmailVerificationRequired: true})
	f.notifier.err = errBoom

	u := f.register(t, "jane@example.com")
	if _, err := f.users.FindByID(context.Background(), u.ID); err != nil {
		t.Errorf("user not persisted: %v", err)
	}
}

func TestAccountUsecase_VerifyEmailInvalid(t *testing.T) {
	f := newAccountFixture(t, domain.Capabilities{EmailVerificationRequired: true})
	f.register(t, "jane@example.com")
	token := f.notifier.validations[0].token

	if _, err := f.uc.VerifyEmail(context.Background(), token+"x"); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Errorf("tampered err = %v, want ErrTokenInvalid", err)
	}

	// token outlives its user
	u, _ := f.users.FindByEmail(context.Background(), "jane@example.com")
	_ = f.users.Delete(context.Background(), u.ID)
	if _, err := f.uc.VerifyEmail(context.Background(), token); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Errorf("deleted user err = %v, want ErrTokenInvalid", err)
	}
}

func TestAccountUsecase_PasswordResetFlow(t *testing.T) {
	f := newAccountFixture(t, domain.Capabilities{})
	ctx := context.Background()
	f.register(t, "jane@example.com")

	if err := f.uc.RequestPasswordReset(ctx, "Jane@Example.com"); err != nil {
		t.Fatalf("RequestPasswordReset: %v", err)
	}
	if len(f.notifier.resets) != 1 {
		t.Fatalf("reset emails = %d, want 1", len(f.notifier.resets))
	}
	sent := f.notifier.resets[0]
	raw := onetime.ResetToken(sent.uid, sent.token)

	err := f.uc.ConfirmPasswordReset(ctx, raw, "NewSecret1", "NewSecret2")
	if fields := fieldErrors(t, err); len(fields["new_password2"]) == 0 {
		t.Errorf("fields = %v, want new_password2 mismatch", fields)
	}

	if err := f.uc.ConfirmPasswordReset(ctx, raw, "NewSecret1", "NewSecret1"); err != nil {
		t.Fatalf("ConfirmPasswordReset: %v", err)
	}
	if _, err := f.auth.Login(ctx, "jane@example.com", "NewSecret1"); err != nil {
		t.Errorf("login with new password: %v", err)
	}

	// the password hash moved, so the link is spent
	if err := f.uc.ConfirmPasswordReset(ctx, raw, "Another123", "Another123"); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Errorf("reused link err = %v, want ErrTokenInvalid", err)
	}
}

func TestAccountUsecase_PasswordResetInvalidatedByLogin(t *testing.T) {
	f := newAccountFixture(t, domain.Capabilities{})
	ctx := context.Background()
	f.register(t, "jane@example.com")

	if err := f.uc.RequestPasswordReset(ctx, "jane@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset: %v", err)
	}
	sent := f.notifier.resets[0]

	f.clock.Advance(time.Minute)
	if _, err := f.auth.Login(ctx, "jane@example.com", "Secret123"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	err := f.uc.ConfirmPasswordReset(ctx, onetime.ResetToken(sent.uid, sent.token), "NewSecret1", "NewSecret1")
	if !errors.Is(err, domain.ErrTokenInvalid) {
		t.Errorf("err = %v, want ErrTokenInvalid", err)
	}
}

func TestAccountUsecase_PasswordResetChecksTokenFirst(t *testing.T) {
	f := newAccountFixture(t, domain.Capabilities{})

	err := f.uc.ConfirmPasswordReset(context.Background(), "bm9ib2R5/abc-123", "weak", "other")
	if !errors.Is(err, domain.ErrTokenInvalid) {
		t.Errorf("err = %v, want ErrTokenInvalid", err)
	}
}

func TestAccountUsecase_PasswordResetUnknownEmail(t *testing.T) {
	f := newAccountFixture(t, domain.Capabilities{})

	if err := f.uc.RequestPasswordReset(context.Background(), "nobody@example.com"); err != nil {
		t.Fatalf("err = %v, want nil", err)
	}
	if len(f.notifier.resets) != 0 {
		t.Error("reset email sent for unknown address")
	}
}

func TestAccountUsecase_ChangePassword(t *testing.T) {
	f := newAccountFixture(t, domain.Capabilities{})
	ctx := context.Background()
	u := f.register(t, "jane@example.com")

	err := f.uc.ChangePassword(ctx, u, "Wrong1234", "NewSecret1", "NewSecret1")
	if fields := fieldErrors(t, err); len(fields["old_password"]) == 0 {
		t.Errorf("fields = %v, want old_password error", fields)
	}

	err = f.uc.ChangePassword(ctx, u, "Secret123", "newsecret", "newsecret")
	if fields := fieldErrors(t, err); len(fields["new_password"]) == 0 {
		t.Errorf("fields = %v, want new_password error", fields)
	}

	if err := f.uc.ChangePassword(ctx, u, "Secret123", "NewSecret1", "NewSecret1"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if _, err := f.auth.Login(ctx, "jane@example.com", "Secret123"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Errorf("old password still accepted: %v", err)
	}
}

func TestAccountUsecase_ResendConfirmation(t *testing.T) {
	f := newAccountFixture(t, domain.Capabilities{EmailVerificationRequired: true})
	ctx := context.Background()
	u := f.register(t, "jane@example.com")
	other := f.register(t, "other@example.com")

	if err := f.uc.ResendConfirmation(ctx, nil, "JANE@example.com"); err != nil {
		t.Fatalf("anonymous resend: %v", err)
	}
	if len(f.notifier.validations) != 3 {
		t.Errorf("validation emails = %d, want 3", len(f.notifier.validations))
	}

	if err := f.uc.ResendConfirmation(ctx, other, u.Email); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Errorf("foreign address err = %v, want ErrPermissionDenied", err)
	}

	if err := f.uc.ResendConfirmation(ctx, nil, "nobody@example.com"); err != nil {
		t.Errorf("unknown address err = %v, want nil", err)
	}

	_ = f.users.MarkVerified(ctx, u.ID)
	before := len(f.notifier.validations)
	if err := f.uc.ResendConfirmation(ctx, nil, u.Email); err != nil {
		t.Errorf("verified address err = %v, want nil", err)
	}
	if len(f.notifier.validations) != before {
		t.Error("validation email sent to verified address")
	}
}

func TestAccountUsecase_Profile(t *testing.T) {
	f := newAccountFixture(t, domain.Capabilities{})
	ctx := context.Background()
	u := f.register(t, "jane@example.com")

	updated, err := f.uc.UpdateProfile(ctx, u, "Janet")
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if updated.Name != "Janet" || updated.Email != u.Email {
		t.Errorf("updated = %+v", updated)
	}

	if err := f.uc.DeleteAccount(ctx, u); err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}
	if _, err := f.uc.GetUser(ctx, u.ID); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("GetUser after delete err = %v, want ErrUserNotFound", err)
	}
}

func TestAccountUsecase_UserDirectory(t *testing.T) {
	f := newAccountFixture(t, domain.Capabilities{})
	ctx := context.Background()
	a := f.register(t, "a@example.com")
	b := f.register(t, "b@example.com")
	f.register(t, "c@example.com")

	page, err := f.uc.ListUsers(ctx, repository.ListUsersInput{CursorEmail: a.Email, Limit: 1})
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(page) != 1 || page[0].ID != b.ID {
		t.Errorf("page = %+v, want only %s", page, b.Email)
	}

	if err := f.uc.DeleteUser(ctx, a, b.ID); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Errorf("non-staff delete err = %v, want ErrPermissionDenied", err)
	}

	staff := *a
	staff.IsStaff = true
	if err := f.uc.DeleteUser(ctx, &staff, b.ID); err != nil {
		t.Fatalf("staff delete: %v", err)
	}
	if err := f.uc.DeleteUser(ctx, &staff, b.ID); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("second delete err = %v, want ErrUserNotFound", err)
	}
}

func TestAccountUsecase_StaffCreateAndUpdate(t *testing.T) {
	f := newAccountFixture(t, domain.Capabilities{EmailVerificationRequired: true})
	ctx := context.Background()
	member := f.register(t, "member@example.com")
	staff := *member
	staff.IsStaff = true

	in := CreateUserInput{Name: "New", Email: "New@Example.com", Password: "Secret123"}
	if _, err := f.uc.CreateUser(ctx, member, in); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Errorf("non-staff create err = %v, want ErrPermissionDenied", err)
	}

	created, err := f.uc.CreateUser(ctx, &staff, in)
	if err != nil {
		t.Fatalf("staff create: %v", err)
	}
	if created.Email != "new@example.com" || !created.IsActive || !created.EmailVerified {
		t.Errorf("created = %+v, want normalized, active and verified", created)
	}
	if len(f.notifier.validations) != 1 {
		t.Errorf("validations = %d, want only the one from registration", len(f.notifier.validations))
	}

	if _, err := f.uc.CreateUser(ctx, &staff, in); len(fieldErrors(t, err)["email"]) != 1 {
		t.Errorf("duplicate create err = %v", err)
	}
	weak := CreateUserInput{Name: "W", Email: "weak@example.com", Password: "short"}
	if _, err := f.uc.CreateUser(ctx, &staff, weak); len(fieldErrors(t, err)["password"]) == 0 {
		t.Errorf("weak password err = %v", err)
	}

	if _, err := f.uc.UpdateUser(ctx, member, created.ID, "Hijack"); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Errorf("non-staff update err = %v, want ErrPermissionDenied", err)
	}
	updated, err := f.uc.UpdateUser(ctx, &staff, created.ID, "Renamed")
	if err != nil || updated.Name != "Renamed" {
		t.Errorf("staff update = %+v, %v", updated, err)
	}
	if _, err := f.uc.UpdateUser(ctx, &staff, "missing", "X"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("update missing err = %v, want ErrUserNotFound", err)
	}
}

func TestAccountUsecase_Avatar(t *testing.T) {
	f := newAccountFixture(t, domain.Capabilities{HasAvatar: true})
	ctx := context.Background()
	jane := f.register(t, "jane@example.com")
	other := f.register(t, "other@example.com")
	url := "https://cdn.example.com/jane.png"

	if got, err := f.uc.GetAvatar(ctx, jane.ID); err != nil || got != nil {
		t.Errorf("initial avatar = %v, %v", got, err)
	}

	updated, err := f.uc.SetAvatar(ctx, jane, jane.ID, &url)
	if err != nil || updated.Avatar == nil || *updated.Avatar != url {
		t.Fatalf("own avatar = %+v, %v", updated, err)
	}
	if got, _ := f.uc.GetAvatar(ctx, jane.ID); got == nil || *got != url {
		t.Errorf("stored avatar = %v", got)
	}

	if _, err := f.uc.SetAvatar(ctx, other, jane.ID, nil); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Errorf("foreign avatar err = %v, want ErrPermissionDenied", err)
	}
	staff := *other
	staff.IsStaff = true
	if updated, err := f.uc.SetAvatar(ctx, &staff, jane.ID, nil); err != nil || updated.Avatar != nil {
		t.Errorf("staff clear = %+v, %v", updated, err)
	}
}

func TestAccountUsecase_AvatarDisabled(t *testing.T) {
	f := newAccountFixture(t, domain.Capabilities{})
	ctx := context.Background()
	jane := f.register(t, "jane@example.com")
	url := "https://cdn.example.com/jane.png"

	if _, err := f.uc.GetAvatar(ctx, jane.ID); !errors.Is(err, domain.ErrFeatureDisabled) {
		t.Errorf("get err = %v, want ErrFeatureDisabled", err)
	}
	if _, err := f.uc.SetAvatar(ctx, jane, jane.ID, &url); !errors.Is(err, domain.ErrFeatureDisabled) {
		t.Errorf("set err = %v, want ErrFeatureDisabled", err)
	}
}
