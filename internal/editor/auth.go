package editor

import (
	"net/http"
	"strings"

	"github.com/sakif/inkpad/internal/model"
)

type loginPage struct {
	basePage
	Username string
	Error    string
}

func (h *Handler) LoginForm(w http.ResponseWriter, r *http.Request) {
	if h.session.Token() != "" {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	h.renderPage(w, "login.html", loginPage{basePage: h.page("Log in")})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	creds := model.Credentials{
		Username: strings.TrimSpace(r.FormValue("username")),
		Password: r.FormValue("password"),
	}

	// Local check first: an empty field never leaves the machine.
	if creds.Username == "" || creds.Password == "" {
		w.WriteHeader(http.StatusBadRequest)
		h.renderPage(w, "login.html", loginPage{
			basePage: h.page("Log in"),
			Username: creds.Username,
			Error:    "username and password are required",
		})
		return
	}

	token, user, err := h.backend.Login(r.Context(), creds)
	if err != nil {
		w.WriteHeader(statusOf(err))
		h.renderPage(w, "login.html", loginPage{
			basePage: h.page("Log in"),
			Username: creds.Username,
			Error:    messageOf(err),
		})
		return
	}

	if err := h.session.Login(r.Context(), token.AccessToken, user); err != nil {
		h.pageError(w, r, err)
		return
	}
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

type registerPage struct {
	basePage
	Username string
	Email    string
	Error    string
}

func (h *Handler) RegisterForm(w http.ResponseWriter, r *http.Request) {
	h.renderPage(w, "register.html", registerPage{basePage: h.page("Register")})
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	reg := model.Registration{
		Username: strings.TrimSpace(r.FormValue("username")),
		Email:    strings.TrimSpace(r.FormValue("email")),
		Password: r.FormValue("password"),
	}

	if reg.Username == "" || reg.Email == "" || reg.Password == "" {
		w.WriteHeader(http.StatusBadRequest)
		h.renderPage(w, "register.html", registerPage{
			basePage: h.page("Register"),
			Username: reg.Username,
			Email:    reg.Email,
			Error:    "all fields are required",
		})
		return
	}

	if _, err := h.backend.Register(r.Context(), reg); err != nil {
		w.WriteHeader(statusOf(err))
		h.renderPage(w, "register.html", registerPage{
			basePage: h.page("Register"),
			Username: reg.Username,
			Email:    reg.Email,
			Error:    messageOf(err),
		})
		return
	}

	// Registration does not log the user in; the backend expects a
	// separate login call, same as its own web frontend.
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// Logout is the user-initiated path: it clears the session without
// leaving a notice behind, unlike an invalidation.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.session.Logout(r.Context())
	http.Redirect(w, r, "/articles", http.StatusSeeOther)
}

// SetLanguage persists the UI language preference. It survives logout.
func (h *Handler) SetLanguage(w http.ResponseWriter, r *http.Request) {
	lang := r.FormValue("language")
	if lang != "" {
		if err := h.session.SetLanguage(r.Context(), lang); err != nil {
			h.pageError(w, r, err)
			return
		}
	}
	ref := r.Header.Get("Referer")
	if ref == "" {
		ref = "/articles"
	}
	http.Redirect(w, r, ref, http.StatusSeeOther)
}
