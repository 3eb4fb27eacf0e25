package mapping

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/iurnickita/topuprouter/internal/model"
)

// Зарезервированный ключ словарного правила: константа вместо данных события
const DefaultKey = "default"

// FieldRule - правило заполнения одного поля запроса к провайдеру.
//
// В YAML это либо строка (id группы атрибутов, значение копируется как есть),
// либо словарь {id группы: {значение в событии: значение для провайдера}}
// с необязательным ключом default.
type FieldRule struct {
	GroupID    string
	Values     map[string]map[string]string
	Default    string
	HasDefault bool
}

func (r *FieldRule) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		r.GroupID = node.Value
		return nil
	case yaml.MappingNode:
		r.Values = make(map[string]map[string]string)
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, value := node.Content[i], node.Content[i+1]
			if key.Value == DefaultKey {
				if value.Kind != yaml.ScalarNode {
					return fmt.Errorf("line %d: %s must be a scalar", value.Line, DefaultKey)
				}
				r.Default = value.Value
				r.HasDefault = true
				continue
			}
			var values map[string]string
			if err := value.Decode(&values); err != nil {
				return fmt.Errorf("line %d: group %s: %w", value.Line, key.Value, err)
			}
			r.Values[key.Value] = values
		}
		return nil
	default:
		return fmt.Errorf("line %d: field rule must be a string or a mapping", node.Line)
	}
}

// resolve - первое подходящее вхождение в порядке события.
// default словарного правила имеет приоритет над данными события.
func (r FieldRule) resolve(attrs []model.DeliveryAttribute) (string, bool) {
	if r.GroupID != "" {
		for _, attr := range attrs {
			if attr.GroupID != r.GroupID {
				continue
			}
			if attr.Value != "" {
				return attr.Value, true
			}
			return attr.AttributeValue, attr.AttributeValue != ""
		}
		return "", false
	}

	if r.HasDefault {
		return r.Default, true
	}
	for _, attr := range attrs {
		values, ok := r.Values[attr.GroupID]
		if !ok {
			continue
		}
		if v, ok := values[attr.AttributeValue]; ok && attr.AttributeValue != "" {
			return v, true
		}
		if v, ok := values[attr.Value]; ok && attr.Value != "" {
			return v, true
		}
	}
	return "", false
}
