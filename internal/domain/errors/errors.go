package errors

import "errors"

var (
	ErrValidationFailed   = errors.New("ошибка валидации")
	ErrUserNotFound       = errors.New("пользователь не найден")
	ErrTodoNotFound       = errors.New("задача не найдена")
	ErrInvalidCredentials = errors.New("неверные учетные данные")
	ErrUserAlreadyExists  = errors.New("пользователь уже существует")
	ErrTokenRequired      = errors.New("требуется токен доступа")
	ErrInvalidToken       = errors.New("недействительный токен")
	ErrInternalServer     = errors.New("внутренняя ошибка сервера")
	ErrBadRequest         = errors.New("неверный запрос")
	ErrNotFound           = errors.New("ресурс не найден")
	ErrMethodNotAllowed   = errors.New("использован некорректный HTTP-метод")
	ErrTooManyRequests    = errors.New("слишком много запросов, попробуйте позже")

	ErrMissingFields      = errors.New("все поля обязательны")
	ErrMissingCredentials = errors.New("email и пароль обязательны")
	ErrInvalidUsername    = errors.New("некорректное имя пользователя")
	ErrInvalidEmail       = errors.New("некорректный email")
	ErrInvalidPassword    = errors.New("пароль должен содержать от 6 до 72 символов")
	ErrInvalidText        = errors.New("текст задачи обязателен и не должен превышать 200 символов")
	ErrInvalidPriority    = errors.New("недопустимый приоритет задачи")
	ErrInvalidTags        = errors.New("некорректные теги задачи")
	ErrInvalidFilter      = errors.New("некорректный фильтр задач")

	ErrUnknownStorage       = errors.New("неизвестный тип хранилища")
	ErrDatabaseConnection   = errors.New("ошибка соединения с базой данных")
	ErrConfigFileReadFailed = errors.New("не удалось прочитать файл конфигурации")
	ErrConfigParseFailed    = errors.New("не удалось разобрать файл конфигурации")
	ErrConfigInvalidFormat  = errors.New("некорректный формат значения")
	ErrInvalidGzipRequest   = errors.New("некорректное тело запроса gzip")
	ErrRequestTooLarge      = errors.New("тело запроса слишком большое")
)
