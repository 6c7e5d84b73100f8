// Пакет tags — валидатор тегов по неизменяемому allow-list.
// Список задаётся при создании (из конфигурации) и далее не меняется,
// поэтому Validator безопасен для конкурентного чтения без блокировок.
package tags

import (
	"sort"
	"strings"
)

// Validator — проверка тегов по фиксированному словарю.
type Validator struct {
	allowed map[string]struct{}
}

// NewValidator создаёт валидатор. Теги словаря приводятся
// к нижнему регистру.
func NewValidator(allowed []string) *Validator {
	set := make(map[string]struct{}, len(allowed))
	for _, t := range allowed {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		set[t] = struct{}{}
	}
	return &Validator{allowed: set}
}

// IsValid проверяет тег на вхождение в словарь (регистронезависимо).
func (v *Validator) IsValid(tag string) bool {
	_, ok := v.allowed[strings.ToLower(tag)]
	return ok
}

// Allowed возвращает отсортированный список разрешённых тегов.
func (v *Validator) Allowed() []string {
	result := make([]string, 0, len(v.allowed))
	for t := range v.allowed {
		result = append(result, t)
	}
	sort.Strings(result)
	return result
}
