package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// excludeFields 不参与版本计算的元数据字段
var excludeFields = []string{
	"fetched_at",
	"version",
	"trace",
}

// CalculateVersion 计算快照文档的内容版本
// 只包含业务字段，排除元数据字段；内容相同的文档得到相同的版本
func CalculateVersion(obj interface{}) (string, error) {
	// 将对象转换为 JSON
	data, err := json.Marshal(obj)
	if err != nil {
		return "", err
	}

	// 解析 JSON 并移除元数据字段
	var objMap map[string]interface{}
	if err := json.Unmarshal(data, &objMap); err != nil {
		return "", err
	}
	for _, field := range excludeFields {
		delete(objMap, field)
	}

	// encoding/json 按 key 排序输出 map，重新序列化即可保证字段顺序一致
	cleanData, err := json.Marshal(objMap)
	if err != nil {
		return "", err
	}

	// 计算 SHA256 哈希
	sum := sha256.Sum256(cleanData)
	return hex.EncodeToString(sum[:]), nil
}
