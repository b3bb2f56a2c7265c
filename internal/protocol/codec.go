package protocol

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

var (
	// ErrDecode — байты повреждены/обрезаны или не содержат валидного
	// сообщения текущей схемы. Ошибка уровня границы, не бизнес-логики.
	ErrDecode = errors.New("decode failed")

	// ErrSchemaVersion — конверт закодирован несовместимой версией схемы.
	// Является подвидом ErrDecode (errors.Is(err, ErrDecode) == true).
	ErrSchemaVersion = errors.New("incompatible schema version")

	// ErrUnexpectedMessage — байты декодированы корректно, но тип сообщения
	// не тот, который ожидал вызывающий. Протокольная ошибка, не ошибка кодека.
	ErrUnexpectedMessage = errors.New("unexpected message kind")
)

// envelope — транспортный конверт: версия схемы, тег типа и тело.
// Неизвестные ключи тела игнорируются (forward compatibility),
// отсутствие обязательных полей — ошибка декодирования.
type envelope struct {
	Version uint8           `cbor:"v"`
	Kind    Kind            `cbor:"t"`
	Body    cbor.RawMessage `cbor:"b"`
}

// Режимы кодека фиксируем один раз: детерминированная сортировка ключей
// при кодировании, запрет дубликатов ключей при декодировании.
var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encMode, err = cbor.EncOptions{Sort: cbor.SortCanonical}.EncMode()
	if err != nil {
		panic(err)
	}

	decMode, err = cbor.DecOptions{DupMapKey: cbor.DupMapKeyEnforcedAPF}.DecMode()
	if err != nil {
		panic(err)
	}
}

// Encode сериализует сообщение в бинарный вид: CBOR-конверт
// {v: SchemaVersion, t: kind, b: тело}.
func Encode(m Message) ([]byte, error) {
	const op = "protocol.Encode"

	body, err := encMode.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	env := envelope{
		Version: SchemaVersion,
		Kind:    m.MessageKind(),
		Body:    body,
	}

	data, err := encMode.Marshal(&env)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return data, nil
}

// Decode разбирает бинарное сообщение. Гарантии:
//   - повреждённые/обрезанные байты -> ErrDecode, никогда не panic
//     и никогда не частично заполненное сообщение;
//   - конверт другой версии схемы -> ErrSchemaVersion (и ErrDecode);
//   - неизвестный тег типа -> ErrDecode;
//   - отсутствие обязательных полей -> ErrDecode.
func Decode(data []byte) (Message, error) {
	const op = "protocol.Decode"

	var env envelope
	if err := decMode.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrDecode, err)
	}

	if env.Version != SchemaVersion {
		return nil, fmt.Errorf("%s: %w: %w: got v%d, want v%d",
			op, ErrDecode, ErrSchemaVersion, env.Version, SchemaVersion)
	}

	msg, err := newMessage(env.Kind)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrDecode, err)
	}

	if err := decMode.Unmarshal(env.Body, msg); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrDecode, err)
	}

	if err := msg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrDecode, err)
	}

	return msg, nil
}

// DecodeExpect декодирует сообщение и проверяет, что оно ожидаемого типа.
// Корректно декодированное сообщение другого типа — ErrUnexpectedMessage.
func DecodeExpect[M Message](data []byte) (M, error) {
	const op = "protocol.DecodeExpect"

	var zero M

	msg, err := Decode(data)
	if err != nil {
		return zero, err
	}

	typed, ok := msg.(M)
	if !ok {
		return zero, fmt.Errorf("%s: %w: got %q", op, ErrUnexpectedMessage, msg.MessageKind())
	}

	return typed, nil
}

// newMessage возвращает пустое сообщение по тегу типа.
func newMessage(k Kind) (Message, error) {
	switch k {
	case KindLoginRequest:
		return &LoginRequest{}, nil
	case KindLoginResponse:
		return &LoginResponse{}, nil
	case KindLogoutRequest:
		return &LogoutRequest{}, nil
	case KindLogoutResponse:
		return &LogoutResponse{}, nil
	case KindWhoAmIRequest:
		return &WhoAmIRequest{}, nil
	case KindWhoAmIResponse:
		return &WhoAmIResponse{}, nil
	case KindRegisterRequest:
		return &RegisterRequest{}, nil
	case KindErrorResponse:
		return &ErrorResponse{}, nil
	default:
		return nil, fmt.Errorf("unknown message kind %q", k)
	}
}

// missingField — обязательное поле отсутствует или пустое.
func missingField(name string) error {
	return fmt.Errorf("missing required field %q", name)
}
