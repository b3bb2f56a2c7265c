// redact — безопасное представление чувствительных значений в логах.
// Сессионные токены и пароли не логируются никогда, имя пользователя —
// в усечённом виде.
package redact

// Username оставляет от имени первые два символа.
func Username(s string) string {
	r := []rune(s)
	if len(r) <= 2 {
		return "***"
	}

	return string(r[:2]) + "***"
}

func Token() string    { return "[REDACTED_TOKEN]" }
func Password() string { return "[REDACTED_PASSWORD]" }
