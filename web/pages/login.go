package pages

import (
	"context"
	"encoding/json"
	"io"

	"github.com/a-h/templ"
)

type LoginProps struct {
	FirebaseAPIKey     string
	FirebaseAuthDomain string
	FirebaseProjectID  string
	Next               string
}

// Login signs in with the Firebase web SDK and exchanges the ID token for a
// session cookie at /auth/login.
func Login(props LoginProps) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		cfg, err := json.Marshal(map[string]string{
			"apiKey":     props.FirebaseAPIKey,
			"authDomain": props.FirebaseAuthDomain,
			"projectId":  props.FirebaseProjectID,
		})
		if err != nil {
			return err
		}
		next := props.Next
		if next == "" {
			next = "/dashboard"
		}
		nextJSON, _ := json.Marshal(string(templ.URL(next)))

		pw := &writer{w: w}
		pw.raw(`<section class="login"><h1>Sign in</h1>`)
		pw.raw(`<button id="google-login" class="button">Continue with Google</button><p id="login-error"></p></section>`)
		pw.raw(`<script type="module">
import { initializeApp } from "https://www.gstatic.com/firebasejs/10.12.0/firebase-app.js";
import { getAuth, GoogleAuthProvider, signInWithPopup } from "https://www.gstatic.com/firebasejs/10.12.0/firebase-auth.js";
const app = initializeApp(`)
		pw.raw(string(cfg))
		pw.raw(`);
const next = `)
		pw.raw(string(nextJSON))
		pw.raw(`;
document.getElementById("google-login").addEventListener("click", async () => {
  try {
    const cred = await signInWithPopup(getAuth(app), new GoogleAuthProvider());
    const token = await cred.user.getIdToken();
    const res = await fetch("/auth/login", { method: "POST", headers: { Authorization: "Bearer " + token } });
    if (!res.ok) throw new Error("login failed");
    window.location.href = next;
  } catch (e) {
    document.getElementById("login-error").textContent = e.message;
  }
});
</script>`)
		return pw.err
	})
	return layout("Sign in", body)
}
