// protocol описывает общие wire-сообщения клиента и сервера и их
// бинарную CBOR-кодировку. Пакет используется обеими сторонами:
// сервер декодирует запросы и кодирует ответы, клиент — наоборот.
//
// Каждое сообщение самодостаточно: для декодирования не нужен контекст
// предыдущих сообщений. Схема версионируется (SchemaVersion); конверт
// с другой версией отклоняется на этапе декодирования, без попыток
// best-effort разбора.
package protocol

// SchemaVersion — текущая версия wire-схемы. Несовпадение версий клиента
// и сервера должно приводить к быстрой ошибке декодирования, а не к
// тихому неверному разбору байтов.
const SchemaVersion uint8 = 1

// Kind — тег типа сообщения внутри конверта.
type Kind string

// Допустимые типы сообщений.
const (
	KindLoginRequest    Kind = "login_request"
	KindLoginResponse   Kind = "login_response"
	KindLogoutRequest   Kind = "logout_request"
	KindLogoutResponse  Kind = "logout_response"
	KindWhoAmIRequest   Kind = "whoami_request"
	KindWhoAmIResponse  Kind = "whoami_response"
	KindRegisterRequest Kind = "register_request"
	KindErrorResponse   Kind = "error_response"
)

// Message — общий контракт wire-сообщений.
type Message interface {
	// MessageKind возвращает тег типа для конверта.
	MessageKind() Kind
	// validate проверяет наличие обязательных полей после декодирования.
	validate() error
}

// LoginRequest — запрос логина по паре логин/пароль.
type LoginRequest struct {
	Username string `cbor:"username"`
	Password string `cbor:"password"`
}

// LoginResponse — успешный ответ на логин.
//
// ExpiresAt — unix-секунды (UTC): целочисленное представление гарантирует
// точный round-trip decode(encode(m)) == m.
type LoginResponse struct {
	UserID    string `cbor:"user_id"`
	Token     string `cbor:"token"`
	ExpiresAt int64  `cbor:"expires_at"`
}

// LogoutRequest — запрос завершения сессии.
type LogoutRequest struct {
	Token string `cbor:"token"`
}

// LogoutResponse — подтверждение логаута. Полей нет: логаут идемпотентен
// и всегда успешен с точки зрения клиента.
type LogoutResponse struct{}

// WhoAmIRequest — проверка/продление сессии по токену.
type WhoAmIRequest struct {
	Token string `cbor:"token"`
}

// WhoAmIResponse — успешный ответ whoami.
type WhoAmIResponse struct {
	UserID    string `cbor:"user_id"`
	ExpiresAt int64  `cbor:"expires_at"`
}

// RegisterRequest — запрос регистрации нового пользователя.
type RegisterRequest struct {
	Username string `cbor:"username"`
	Password string `cbor:"password"`
}

// ErrorResponse — унифицированная ошибка для клиента.
// Code — короткий стабильный код для машиночитаемой обработки,
// Message — безопасное человекочитаемое описание без внутренних деталей.
type ErrorResponse struct {
	Code    string `cbor:"code"`
	Message string `cbor:"message"`
}

// Стабильные коды ошибок в ErrorResponse.
const (
	CodeBadRequest      = "bad_request"
	CodeInvalidArgument = "invalid_argument"
	CodeUnauthenticated = "unauthenticated"
	CodeAlreadyExists   = "already_exists"
	CodeInternal        = "internal"
)

func (*LoginRequest) MessageKind() Kind    { return KindLoginRequest }
func (*LoginResponse) MessageKind() Kind   { return KindLoginResponse }
func (*LogoutRequest) MessageKind() Kind   { return KindLogoutRequest }
func (*LogoutResponse) MessageKind() Kind  { return KindLogoutResponse }
func (*WhoAmIRequest) MessageKind() Kind   { return KindWhoAmIRequest }
func (*WhoAmIResponse) MessageKind() Kind  { return KindWhoAmIResponse }
func (*RegisterRequest) MessageKind() Kind { return KindRegisterRequest }
func (*ErrorResponse) MessageKind() Kind   { return KindErrorResponse }

func (m *LoginRequest) validate() error {
	if m.Username == "" {
		return missingField("username")
	}
	if m.Password == "" {
		return missingField("password")
	}
	return nil
}

func (m *LoginResponse) validate() error {
	if m.UserID == "" {
		return missingField("user_id")
	}
	if m.Token == "" {
		return missingField("token")
	}
	if m.ExpiresAt == 0 {
		return missingField("expires_at")
	}
	return nil
}

func (m *LogoutRequest) validate() error {
	if m.Token == "" {
		return missingField("token")
	}
	return nil
}

func (*LogoutResponse) validate() error { return nil }

func (m *WhoAmIRequest) validate() error {
	if m.Token == "" {
		return missingField("token")
	}
	return nil
}

func (m *WhoAmIResponse) validate() error {
	if m.UserID == "" {
		return missingField("user_id")
	}
	if m.ExpiresAt == 0 {
		return missingField("expires_at")
	}
	return nil
}

func (m *RegisterRequest) validate() error {
	if m.Username == "" {
		return missingField("username")
	}
	if m.Password == "" {
		return missingField("password")
	}
	return nil
}

func (m *ErrorResponse) validate() error {
	if m.Code == "" {
		return missingField("code")
	}
	return nil
}
